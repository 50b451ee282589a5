// Package canvas implements the drawing surface described in spec.md
// section 4.G: a software back-end built on image/draw, plus the
// server-address fix-up walk that every draw message goes through before
// dispatch.
package canvas

import (
	"github.com/breeze-rmm/spicec/internal/spiceerr"
)

// FixUp relocates a server-address field (an offset relative to the
// server's view of its own address space) into a byte offset into the
// current message body by subtracting base, the address at which the
// body starts (the display channel passes 0, so an address is already a
// body offset). An address that resolves outside [0, len(body)) is a
// protocol error.
func FixUp(body []byte, addr uint32, base uint32) (int, error) {
	off := int64(addr) - int64(base)
	if off < 0 || off >= int64(len(body)) {
		return 0, spiceerr.Protocol("canvas: fixed-up address %d (base %d) out of range [0,%d)", addr, base, len(body))
	}
	return int(off), nil
}

// FixUpRange is FixUp plus a length check, for fields that reference a
// sized sub-structure (an image descriptor, a path, a string) rather than
// a single fixed-size record.
func FixUpRange(body []byte, addr uint32, base uint32, size int) (int, error) {
	off, err := FixUp(body, addr, base)
	if err != nil {
		return 0, err
	}
	if off+size > len(body) {
		return 0, spiceerr.Protocol("canvas: fixed-up range [%d,%d) exceeds body length %d", off, off+size, len(body))
	}
	return off, nil
}
