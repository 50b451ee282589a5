//go:build windows

package platform

// TerminalSize returns a fixed default; Windows consoles are queried
// through a different API than TIOCGWINSZ and the reference CLI does not
// need live sizing there.
func TerminalSize() (Size, error) {
	return Size{Cols: 80, Rows: 24}, nil
}

// WatchResize is a no-op on Windows, which has no SIGWINCH.
func WatchResize(ch chan<- struct{}) {}
