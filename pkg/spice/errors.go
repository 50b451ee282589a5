package spice

import "fmt"

// errShort is a small helper for "buffer too short to hold a fixed-size
// wire structure" parse errors, used throughout this package's Unmarshal*
// functions.
func errShort(what string, got, want int) error {
	return fmt.Errorf("spice: short %s: %d < %d", what, got, want)
}
