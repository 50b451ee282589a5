package app

import (
	"time"

	"github.com/breeze-rmm/spicec/internal/eventloop"
)

// stickyFireDelay is how long an Alt key (left or right) must be held
// alone before the trace virtualizes it as a sticky modifier, per
// spec.md section 4.M.
const stickyFireDelay = 750 * time.Millisecond

// stickyState is the sticky-key trace of spec.md section 4.M / section 3
// ("Sticky-key state"): the traced key, first_down, down, and is_sticky
// (here stickyMode). The fire timer is not stored here; onKeyDown
// schedules it on the event loop it is given. There is no trace-enabled
// flag: Application feeds every key event to the trace, whatever the
// splash or key-intercept state.
type stickyState struct {
	key        uint32
	firstDown  bool
	down       bool
	stickyMode bool
}

func (s *stickyState) reset() {
	*s = stickyState{}
}

// isStickyTraceKey reports whether k is a candidate to arm the sticky
// trace. Only the Alt keys are traced, per spec.md section 4.M's example
// ("the user pressed and held Alt alone").
func isStickyTraceKey(k uint32) bool {
	return k == ScanCodeAlt || k == ScanCodeAltRight
}

// onKeyDown runs the trace for one key_down, given the pressed-set AFTER
// this key was added and whether k was already down beforehand (to
// ignore OS auto-repeat). loop/onFire let the 750ms arm schedule a
// callback without this package owning a clock.
func (s *stickyState) onKeyDown(k uint32, numPressed int, wasPressed bool, loop *eventloop.Loop, onFire func()) {
	if k == s.key {
		s.down = true
	}
	if s.stickyMode {
		return
	}
	if s.firstDown {
		if k != s.key {
			s.reset()
		}
		return
	}
	if isStickyTraceKey(k) && numPressed == 1 && !wasPressed {
		s.key = k
		s.firstDown = true
		s.down = true
		armedKey := k
		loop.AddTimer(time.Now().Add(stickyFireDelay), func() {
			if s.key != armedKey || !s.down {
				return // released or re-armed before the timer fired
			}
			s.stickyMode = true
			onFire()
		})
	}
}

// onKeyUp runs the trace for one key_up. It returns true if this key_up
// must be swallowed (not forwarded to the inputs channel).
func (s *stickyState) onKeyUp(k uint32) (swallow bool) {
	if k == s.key {
		s.down = false
		if s.firstDown {
			s.firstDown = false
			if !s.stickyMode {
				s.reset()
			} else {
				return true // swallow the first up
			}
		}
	}
	if s.stickyMode {
		old := s.key
		s.reset()
		if k == old {
			return true // avoid a double up
		}
	}
	return false
}
