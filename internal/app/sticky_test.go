package app

import (
	"testing"
	"time"

	"github.com/breeze-rmm/spicec/internal/eventloop"
)

func TestStickyArmsOnlyWhenAltIsAloneAndNew(t *testing.T) {
	var s stickyState
	loop := eventloop.New(8)
	go loop.Run()
	defer loop.Stop()

	fired := make(chan struct{}, 1)
	s.onKeyDown(ScanCodeAlt, 1, false, loop, func() { fired <- struct{}{} })

	select {
	case <-fired:
		t.Fatal("sticky mode must not fire before the delay elapses")
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("sticky mode never fired after holding Alt alone past the delay")
	}
	if !s.stickyMode {
		t.Fatal("stickyMode should be set once the arm timer fires")
	}
}

func TestStickyDoesNotArmWhenOtherKeysAreDown(t *testing.T) {
	var s stickyState
	loop := eventloop.New(8)
	go loop.Run()
	defer loop.Stop()

	fired := make(chan struct{}, 1)
	// numPressed=2 means some other key is already down alongside Alt.
	s.onKeyDown(ScanCodeAlt, 2, false, loop, func() { fired <- struct{}{} })

	select {
	case <-fired:
		t.Fatal("sticky trace must not arm when Alt is not pressed alone")
	case <-time.After(900 * time.Millisecond):
	}
}

func TestStickyResetsOnFirstMismatchedKey(t *testing.T) {
	var s stickyState
	loop := eventloop.New(8)
	go loop.Run()
	defer loop.Stop()

	s.onKeyDown(ScanCodeAlt, 1, false, loop, func() {})
	if !s.firstDown {
		t.Fatal("expected the trace to arm first_down on the lone Alt press")
	}

	s.onKeyDown(ScanCodeF11, 2, false, loop, func() {})
	if s.firstDown || s.key != 0 {
		t.Fatal("a second distinct key before the delay must reset the trace")
	}
}

func TestStickyUpSwallowsFirstReleaseOnceArmed(t *testing.T) {
	var s stickyState
	s.stickyMode = true
	s.key = ScanCodeAlt
	s.down = true
	s.firstDown = true

	if swallow := s.onKeyUp(ScanCodeAlt); !swallow {
		t.Fatal("the first release after sticky mode fires must be swallowed")
	}
	if s.firstDown {
		t.Fatal("firstDown must clear after the first release is swallowed")
	}
	if !s.stickyMode {
		t.Fatal("stickyMode persists until the virtualized key_up is delivered")
	}
}

func TestStickyUpDeliversVirtualizedReleaseExactlyOnce(t *testing.T) {
	var s stickyState
	s.stickyMode = true
	s.key = ScanCodeAlt
	s.down = true
	s.firstDown = true

	s.onKeyUp(ScanCodeAlt) // swallowed; leaves stickyMode set awaiting the real up

	if swallow := s.onKeyUp(ScanCodeAlt); !swallow {
		t.Fatal("the virtualized release for the sticky key must also be swallowed")
	}
	if s.stickyMode {
		t.Fatal("stickyMode must clear once the virtualized release is delivered")
	}

	// Releasing an unrelated key after sticky mode has cleared passes through.
	if swallow := s.onKeyUp(ScanCodeF11); swallow {
		t.Fatal("unrelated key_up after sticky mode cleared must not be swallowed")
	}
}
