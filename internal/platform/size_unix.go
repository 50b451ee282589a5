//go:build linux || darwin

package platform

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// TerminalSize reads the controlling terminal's size via TIOCGWINSZ.
func TerminalSize() (Size, error) {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return Size{}, err
	}
	return Size{Cols: int(ws.Col), Rows: int(ws.Row)}, nil
}

// WatchResize delivers a notification on ch each time the terminal is
// resized (SIGWINCH), dropping the notification when ch is not ready.
// There is no way to stop watching: signal.Notify's relay and the
// forwarding goroutine persist for the process lifetime, matching the
// teacher's signal-handling goroutines that run until process exit.
func WatchResize(ch chan<- struct{}) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGWINCH)
	go func() {
		for range sig {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()
}
