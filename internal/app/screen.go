package app

import (
	"sync"

	"github.com/breeze-rmm/spicec/internal/canvas"
	"github.com/breeze-rmm/spicec/internal/cursor"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

// LayerKind tags the composited layers a Screen stacks in z-order, per
// the design note replacing the original's deep ScreenLayer hierarchy
// with a capability set over a tagged union (spec.md section 9).
type LayerKind int

const (
	LayerDisplay LayerKind = iota
	LayerCursor
	LayerSticky
	LayerInfo
	LayerSplash
)

// Backend is the external collaborator a Screen drives: the platform
// window/graphics back-end spec.md section 1 places out of scope. It
// receives exactly the calls a Screen needs to composite and present.
type Backend interface {
	AttachDisplay(canvas canvas.Canvas)
	DetachDisplay()
	InvalidateRegion(box spice.Rect, urgent bool)
	ShowCursor(shape cursor.Shape, position spice.Point16)
	HideCursor()
	MoveCursor(position spice.Point16)
	ShowSplash()
	ShowInfo(message string)
	ShowStickyOverlay()
	HideStickyOverlay()
	SetFullScreen(bool)
	Close()
}

// Screen is one top-level window, one per Monitor assigned full-screen or
// one shared windowed view. It implements display.Screen and hands out a
// cursor.Layer so a cursor channel can be reparented to it by id.
type Screen struct {
	ID      uint32
	backend Backend

	mu          sync.Mutex
	attached    bool
	fullScreen  bool
	updateMarks uint64
}

// NewScreen wraps a platform Backend.
func NewScreen(id uint32, backend Backend) *Screen {
	return &Screen{ID: id, backend: backend}
}

// Attach implements display.Screen: the display channel calls this once
// MARK arrives, switching the screen out of splash mode.
func (s *Screen) Attach(surfaceID uint32, c canvas.Canvas) {
	s.mu.Lock()
	s.attached = true
	s.mu.Unlock()
	s.backend.AttachDisplay(c)
}

// Detach implements display.Screen, called on RESET or disconnect.
func (s *Screen) Detach() {
	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()
	s.backend.DetachDisplay()
	s.backend.ShowSplash()
}

// Invalidate implements display.Screen, returning a monotonically
// increasing update-mark token the video engine waits on before
// releasing the next queued frame.
func (s *Screen) Invalidate(surfaceID uint32, box spice.Rect, urgent bool) uint64 {
	s.backend.InvalidateRegion(box, urgent)
	s.mu.Lock()
	s.updateMarks++
	mark := s.updateMarks
	s.mu.Unlock()
	return mark
}

// IsAttached reports whether the display layer is currently shown
// (false while in splash mode, per spec.md section 4.H).
func (s *Screen) IsAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// CursorLayer returns a cursor.Layer bound to this screen's backend, for
// a cursor channel's AttachLayer call (spec.md section 4.J).
func (s *Screen) CursorLayer() *cursor.Layer {
	return &cursor.Layer{
		Show: s.backend.ShowCursor,
		Hide: s.backend.HideCursor,
		Move: s.backend.MoveCursor,
	}
}

// ShowStickyOverlay/HideStickyOverlay surface the sticky-key trace's
// visual feedback (spec.md section 4.M).
func (s *Screen) ShowStickyOverlay() { s.backend.ShowStickyOverlay() }
func (s *Screen) HideStickyOverlay() { s.backend.HideStickyOverlay() }

// ShowInfo surfaces a NOTIFY message on the GUI layer.
func (s *Screen) ShowInfo(message string) { s.backend.ShowInfo(message) }

// SetFullScreen toggles the screen's full-screen presentation, driven by
// the toggle-fullscreen hotkey command.
func (s *Screen) SetFullScreen(v bool) {
	s.mu.Lock()
	s.fullScreen = v
	s.mu.Unlock()
	s.backend.SetFullScreen(v)
}

// FullScreen reports the screen's current full-screen state.
func (s *Screen) FullScreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullScreen
}

// Close tears down the backend window.
func (s *Screen) Close() { s.backend.Close() }
