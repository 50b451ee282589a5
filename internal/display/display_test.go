package display

import (
	"image/color"
	"testing"

	"github.com/breeze-rmm/spicec/internal/cache"
	"github.com/breeze-rmm/spicec/internal/canvas"
	"github.com/breeze-rmm/spicec/internal/glz"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

// recordingScreen is a minimal Screen that records attach/detach/
// invalidate calls instead of compositing anything.
type recordingScreen struct {
	attachedSurface uint32
	attachedCanvas  canvas.Canvas
	detached        bool
	invalidated     []spice.Rect
}

func (s *recordingScreen) Attach(surfaceID uint32, c canvas.Canvas) {
	s.attachedSurface = surfaceID
	s.attachedCanvas = c
}
func (s *recordingScreen) Detach() { s.detached = true }
func (s *recordingScreen) Invalidate(surfaceID uint32, box spice.Rect, urgent bool) uint64 {
	s.invalidated = append(s.invalidated, box)
	return uint64(len(s.invalidated))
}

func newTestChannel(screen Screen) *Channel {
	pixmaps := cache.New(0)
	glzWin := glz.NewWindow(0)
	return New(Config{Screen: screen}, pixmaps, glzWin)
}

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func surfaceCreateBody(id, w, h uint32) []byte {
	buf := make([]byte, 0, 20)
	buf = append(buf, u32le(id)...)
	buf = append(buf, u32le(w)...)
	buf = append(buf, u32le(h)...)
	buf = append(buf, u32le(uint32(spice.SurfaceFormat32BPP))...)
	buf = append(buf, u32le(0)...)
	return buf
}

// drawFillBody builds a raw SPICE_MSG_DISPLAY_DRAW_FILL body: surfaceID,
// box, clip(none), brush(solid color), rop, qmask(absent).
func drawFillBody(surfaceID uint32, box spice.Rect, color uint32) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, u32le(surfaceID)...)
	buf = append(buf, spice.MarshalRect(box)...)
	buf = append(buf, byte(spice.ClipNone))
	buf = append(buf, byte(spice.BrushSolid))
	buf = append(buf, u32le(color)...)
	buf = append(buf, 0) // rop
	// qmask: flags(1) + origin(2x int16 = 4) + addr(u32 = 4) = 9 bytes, all
	// zero == absent mask.
	buf = append(buf, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	return buf
}

// TestSplashToFillScenario reproduces spec.md section 8 scenario 1: a
// primary surface is created, MARK attaches the display layer, and a
// DRAW_FILL paints every pixel the declared color. This exercises
// HandleMessage's DISPLAY_DRAW_* dispatch through dispatchDraw end to
// end, which previously referenced an undefined method.
func TestSplashToFillScenario(t *testing.T) {
	scr := &recordingScreen{}
	ch := newTestChannel(scr)

	if err := ch.HandleMessage(spice.MsgDisplaySurfaceCreate, surfaceCreateBody(0, 800, 600)); err != nil {
		t.Fatalf("SURFACE_CREATE: %v", err)
	}
	if err := ch.HandleMessage(spice.MsgDisplayMark, nil); err != nil {
		t.Fatalf("MARK: %v", err)
	}
	if scr.attachedCanvas == nil {
		t.Fatal("MARK did not attach the primary surface to the screen")
	}

	box := spice.Rect{Top: 0, Left: 0, Bottom: 600, Right: 800}
	body := drawFillBody(0, box, 0xFF00FF)
	if err := ch.HandleMessage(spice.MsgDisplayDrawFill, body); err != nil {
		t.Fatalf("DRAW_FILL: %v", err)
	}

	sw := ch.surfaces[0].canvas
	img := sw.Image()
	want := color.RGBA{R: 0xFF, G: 0x00, B: 0xFF, A: 0xFF}
	for y := 0; y < 600; y += 97 {
		for x := 0; x < 800; x += 131 {
			got := img.RGBAAt(x, y)
			if got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
	if len(scr.invalidated) != 1 || scr.invalidated[0] != box {
		t.Fatalf("expected one invalidate of %v, got %v", box, scr.invalidated)
	}
}

// TestSurfaceDestroyMakesDrawsNoop covers the "outstanding draws to a
// destroyed surface are nops" invariant (spec.md section 4.H) through the
// same dispatchDraw path.
func TestSurfaceDestroyMakesDrawsNoop(t *testing.T) {
	scr := &recordingScreen{}
	ch := newTestChannel(scr)
	if err := ch.HandleMessage(spice.MsgDisplaySurfaceCreate, surfaceCreateBody(0, 4, 4)); err != nil {
		t.Fatalf("SURFACE_CREATE: %v", err)
	}
	sd := u32le(0)
	if err := ch.HandleMessage(spice.MsgDisplaySurfaceDestroy, sd); err != nil {
		t.Fatalf("SURFACE_DESTROY: %v", err)
	}

	box := spice.Rect{Top: 0, Left: 0, Bottom: 4, Right: 4}
	body := drawFillBody(0, box, 0x112233)
	if err := ch.HandleMessage(spice.MsgDisplayDrawFill, body); err != nil {
		t.Fatalf("DRAW_FILL on destroyed surface should be a nop, got error: %v", err)
	}
	if len(scr.invalidated) != 0 {
		t.Fatalf("expected no invalidate for a draw to a destroyed surface, got %v", scr.invalidated)
	}
}
