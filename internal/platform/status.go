package platform

import (
	"sync"

	"github.com/breeze-rmm/spicec/internal/canvas"
	"github.com/breeze-rmm/spicec/internal/cursor"
	"github.com/breeze-rmm/spicec/internal/logging"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

var log = logging.L("platform")

// StatusBackend is the reference CLI's stand-in for the platform
// window/graphics back-end spec.md section 1 places out of scope: it
// implements the exact call set internal/app.Backend declares, but
// reports every transition as a structured log line rather than drawing
// anything. A windowed build swaps this
// out for a Cairo/GDI/GL back-end without internal/app or internal/display
// changing at all.
type StatusBackend struct {
	id uint32

	mu         sync.Mutex
	attached   bool
	fullScreen bool
	cursorOn   bool
	sticky     bool
}

// NewStatusBackend constructs a StatusBackend for screen id.
func NewStatusBackend(id uint32) *StatusBackend {
	return &StatusBackend{id: id}
}

func (b *StatusBackend) AttachDisplay(c canvas.Canvas) {
	b.mu.Lock()
	b.attached = true
	b.mu.Unlock()
	log.Info("screen attached to display surface", "screen", b.id)
}

func (b *StatusBackend) DetachDisplay() {
	b.mu.Lock()
	b.attached = false
	b.mu.Unlock()
	log.Info("screen detached from display surface", "screen", b.id)
}

func (b *StatusBackend) InvalidateRegion(box spice.Rect, urgent bool) {
	log.Debug("region invalidated", "screen", b.id, "box", box, "urgent", urgent)
}

func (b *StatusBackend) ShowCursor(shape cursor.Shape, position spice.Point16) {
	b.mu.Lock()
	b.cursorOn = true
	b.mu.Unlock()
	log.Debug("cursor shown", "screen", b.id, "x", position.X, "y", position.Y)
}

func (b *StatusBackend) HideCursor() {
	b.mu.Lock()
	b.cursorOn = false
	b.mu.Unlock()
	log.Debug("cursor hidden", "screen", b.id)
}

func (b *StatusBackend) MoveCursor(position spice.Point16) {
	log.Debug("cursor moved", "screen", b.id, "x", position.X, "y", position.Y)
}

func (b *StatusBackend) ShowSplash() {
	log.Info("showing splash", "screen", b.id)
}

func (b *StatusBackend) ShowInfo(message string) {
	log.Info("server notice", "screen", b.id, "message", message)
}

func (b *StatusBackend) ShowStickyOverlay() {
	b.mu.Lock()
	b.sticky = true
	b.mu.Unlock()
	log.Info("sticky-key overlay shown", "screen", b.id)
}

func (b *StatusBackend) HideStickyOverlay() {
	b.mu.Lock()
	b.sticky = false
	b.mu.Unlock()
	log.Info("sticky-key overlay hidden", "screen", b.id)
}

func (b *StatusBackend) SetFullScreen(v bool) {
	b.mu.Lock()
	b.fullScreen = v
	b.mu.Unlock()
	log.Info("full-screen toggled", "screen", b.id, "fullScreen", v)
}

func (b *StatusBackend) Close() {
	log.Info("screen closed", "screen", b.id)
}
