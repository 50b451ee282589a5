// Package display implements the display channel state machine of
// spec.md section 4.H: surface/stream lifecycle, cache invalidation, and
// draw-message dispatch into internal/canvas, generalized from the
// teacher's capture/encode session (internal/remote/desktop/session.go)
// into a decode/composite session.
package display

import (
	"sync"
	"time"

	"github.com/breeze-rmm/spicec/internal/cache"
	"github.com/breeze-rmm/spicec/internal/canvas"
	"github.com/breeze-rmm/spicec/internal/channel"
	"github.com/breeze-rmm/spicec/internal/eventloop"
	"github.com/breeze-rmm/spicec/internal/glz"
	"github.com/breeze-rmm/spicec/internal/logging"
	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/internal/video"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

var log = logging.L("display")

// State is the channel's position in spec.md's UNMARKED -> MARKED ->
// DRAWING progression.
type State int

const (
	StateUnmarked State = iota
	StateMarked
	StateDrawing
)

// recoveryDelay is how long the screen stays detached after a RESET,
// per spec.md section 4.H.
const recoveryDelay = 5 * time.Second

// Screen receives the attach/detach/invalidate calls a display channel
// issues as it moves through its state machine, and is implemented by
// whatever owns on-screen presentation.
type Screen interface {
	Attach(surfaceID uint32, c canvas.Canvas)
	Detach()
	Invalidate(surfaceID uint32, box spice.Rect, urgent bool) uint64
}

// Clock exposes the session's shared multi-media time to the video
// engine, advanced by the main channel.
type Clock interface {
	Now() uint32
}

type surface struct {
	canvas  *canvas.Software
	primary bool
}

// Channel is one display channel's session state: one per display_id,
// sharing the pixmap cache and GLZ window across every display channel
// of the session (spec.md section 4.D/4.E).
type Channel struct {
	Base *channel.Base

	screen Screen
	clock  Clock
	loop   *eventloop.Loop

	mu       sync.Mutex
	state    State
	surfaces map[uint32]*surface
	streams  map[uint32]*video.Stream

	pixmaps  *cache.Cache
	palettes *cache.Cache
	glzWin   *glz.Window
	resolver *canvas.Resolver

	bandwidth *video.BandwidthEstimator
}

// Config bundles the shared session state a display channel needs,
// constructed once per session and handed to every display channel.
type Config struct {
	Screen           Screen
	Clock            Clock
	Loop             *eventloop.Loop
	PixmapCacheBytes int
	GLZWindowBytes   int
	Bandwidth        *video.BandwidthEstimator
}

// New constructs a display Channel. The pixmap cache and GLZ window are
// owned by the caller and shared across all display channels in a
// session; New does not create them.
func New(cfg Config, pixmaps *cache.Cache, glzWin *glz.Window) *Channel {
	c := &Channel{
		screen:   cfg.Screen,
		clock:    cfg.Clock,
		loop:     cfg.Loop,
		surfaces: make(map[uint32]*surface),
		streams:  make(map[uint32]*video.Stream),
		pixmaps:  pixmaps,
		palettes: cache.New(4 * 1024 * 1024),
		glzWin:   glzWin,
		bandwidth: cfg.Bandwidth,
	}
	c.resolver = &canvas.Resolver{Pixmaps: c.pixmaps, GLZ: c.glzWin}
	return c
}

// OnConnected implements channel.Handler.
func (c *Channel) OnConnected() {
	c.mu.Lock()
	c.state = StateUnmarked
	c.mu.Unlock()
}

// OnDisconnected implements channel.Handler.
func (c *Channel) OnDisconnected(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen != nil {
		c.screen.Detach()
	}
	c.state = StateUnmarked
}

// HandleMessage implements channel.Handler, dispatching by message type.
func (c *Channel) HandleMessage(msgType uint16, body []byte) error {
	switch msgType {
	case spice.MsgDisplayMode:
		return nil // deprecated legacy mode negotiation; nothing to act on

	case spice.MsgDisplayMark:
		c.onMark()
		return nil

	case spice.MsgDisplayReset:
		c.onReset()
		return nil

	case spice.MsgDisplaySurfaceCreate:
		sc, err := spice.UnmarshalSurfaceCreate(body)
		if err != nil {
			return err
		}
		return c.onSurfaceCreate(sc)

	case spice.MsgDisplaySurfaceDestroy:
		sd, err := spice.UnmarshalSurfaceDestroy(body)
		if err != nil {
			return err
		}
		c.onSurfaceDestroy(sd)
		return nil

	case spice.MsgDisplayInvalList:
		il, err := spice.UnmarshalInvalList(body)
		if err != nil {
			return err
		}
		for _, id := range il.IDs {
			c.pixmaps.Evict(id)
		}
		return nil

	case spice.MsgDisplayInvalAllPixmaps:
		c.pixmaps.Clear()
		return nil

	case spice.MsgDisplayInvalPalette:
		il, err := spice.UnmarshalInvalList(body)
		if err != nil {
			return err
		}
		for _, id := range il.IDs {
			c.palettes.Evict(id)
		}
		return nil

	case spice.MsgDisplayInvalAllPalettes:
		c.palettes.Clear()
		return nil

	case spice.MsgDisplayStreamCreate:
		sc, err := spice.UnmarshalStreamCreate(body)
		if err != nil {
			return err
		}
		return c.onStreamCreate(sc)

	case spice.MsgDisplayStreamData:
		sd, err := spice.UnmarshalStreamData(body)
		if err != nil {
			return err
		}
		return c.onStreamData(sd)

	case spice.MsgDisplayStreamClip:
		sc, err := spice.UnmarshalStreamClip(body)
		if err != nil {
			return err
		}
		return c.onStreamClip(sc)

	case spice.MsgDisplayStreamDestroy:
		sd, err := spice.UnmarshalStreamDestroy(body)
		if err != nil {
			return err
		}
		c.onStreamDestroy(sd.StreamID)
		return nil

	case spice.MsgDisplayStreamDestroyAll:
		c.onStreamDestroyAll()
		return nil

	case spice.MsgDisplayMonitorsConfig:
		_, err := spice.UnmarshalMonitorsConfig(body)
		return err

	case spice.MsgDisplayCopyBits:
		return c.dispatchDraw(body, spice.UnmarshalDrawCopyBits)
	case spice.MsgDisplayDrawFill:
		return c.dispatchDraw(body, spice.UnmarshalDrawFill)
	case spice.MsgDisplayDrawOpaque:
		return c.dispatchDraw(body, spice.UnmarshalDrawOpaque)
	case spice.MsgDisplayDrawCopy:
		return c.dispatchDraw(body, spice.UnmarshalDrawCopy)
	case spice.MsgDisplayDrawBlend:
		return c.dispatchDraw(body, spice.UnmarshalDrawBlend)
	case spice.MsgDisplayDrawBlackness:
		return c.dispatchDraw(body, spice.UnmarshalDrawBlackness)
	case spice.MsgDisplayDrawWhiteness:
		return c.dispatchDraw(body, spice.UnmarshalDrawWhiteness)
	case spice.MsgDisplayDrawInvers:
		return c.dispatchDraw(body, spice.UnmarshalDrawInvers)
	case spice.MsgDisplayDrawRop3:
		return c.dispatchDraw(body, spice.UnmarshalDrawRop3)
	case spice.MsgDisplayDrawStroke:
		return c.onDrawStroke(body)
	case spice.MsgDisplayDrawText:
		return c.dispatchDraw(body, spice.UnmarshalDrawText)
	case spice.MsgDisplayDrawTransparent:
		return c.dispatchDraw(body, spice.UnmarshalDrawTransparent)
	case spice.MsgDisplayDrawAlphaBlend:
		return c.dispatchDraw(body, spice.UnmarshalDrawAlphaBlend)

	default:
		return spiceerr.Protocol("display: unknown message type %d", msgType)
	}
}

func (c *Channel) onMark() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUnmarked {
		c.state = StateMarked
	}
	c.state = StateDrawing
	primary := c.primarySurfaceLocked()
	if primary != nil && c.screen != nil {
		c.screen.Attach(0, primary.canvas)
	}
}

func (c *Channel) onReset() {
	c.mu.Lock()
	c.state = StateUnmarked
	c.surfaces = make(map[uint32]*surface)
	c.palettes.Clear()
	if c.screen != nil {
		c.screen.Detach()
	}
	c.mu.Unlock()

	if c.loop != nil {
		c.loop.AddTimer(time.Now().Add(recoveryDelay), func() {
			log.Info("display recovery window elapsed")
		})
	}
}

func (c *Channel) primarySurfaceLocked() *surface {
	for _, s := range c.surfaces {
		if s.primary {
			return s
		}
	}
	return nil
}

func (c *Channel) onSurfaceCreate(sc spice.SurfaceCreate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.surfaces[sc.SurfaceID]; exists {
		return spiceerr.Protocol("display: surface %d already exists", sc.SurfaceID)
	}
	sw := canvas.NewSoftware(int(sc.Width), int(sc.Height))
	s := &surface{canvas: sw, primary: sc.SurfaceID == 0 || sc.Flags&spice.SurfaceFlagPrimary != 0}
	c.surfaces[sc.SurfaceID] = s
	if s.primary && c.state == StateDrawing && c.screen != nil {
		c.screen.Attach(sc.SurfaceID, sw)
	}
	return nil
}

func (c *Channel) onSurfaceDestroy(sd spice.SurfaceDestroy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.surfaces, sd.SurfaceID)
	for id, st := range c.streams {
		_ = st
		if id == sd.SurfaceID {
			delete(c.streams, id)
		}
	}
}

func (c *Channel) onStreamCreate(sc spice.StreamCreate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.surfaces[sc.SurfaceID]
	if !ok {
		return spiceerr.Protocol("display: stream_create on unknown surface %d", sc.SurfaceID)
	}
	invalidate := func(surfaceID uint32, box spice.Rect, urgent bool) uint64 {
		if c.screen == nil {
			return 0
		}
		return c.screen.Invalidate(surfaceID, box, urgent)
	}
	st := video.NewStream(sc.StreamID, sc.SurfaceID, sc.Codec, sc.DestRegion, sc.Clip,
		s.canvas, c.resolver, c.clock, c.loop, invalidate)
	c.streams[sc.StreamID] = st
	return nil
}

func (c *Channel) onStreamData(sd spice.StreamData) error {
	c.mu.Lock()
	st, ok := c.streams[sd.StreamID]
	c.mu.Unlock()
	if !ok {
		return spiceerr.Protocol("display: stream_data on unknown stream %d", sd.StreamID)
	}
	st.Push(sd.MultiMediaTime, sd.Data)
	return nil
}

func (c *Channel) onStreamClip(sc spice.StreamClip) error {
	c.mu.Lock()
	st, ok := c.streams[sc.StreamID]
	c.mu.Unlock()
	if !ok {
		return spiceerr.Protocol("display: stream_clip on unknown stream %d", sc.StreamID)
	}
	st.SetClip(sc.Clip)
	return nil
}

func (c *Channel) onStreamDestroy(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.streams, id)
}

func (c *Channel) onStreamDestroyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streams = make(map[uint32]*video.Stream)
}

// OnUpdateMarkAck forwards the screen compositor's mark acknowledgement
// to every stream on this channel so queued frames behind that mark can
// be released.
func (c *Channel) OnUpdateMarkAck(mark uint64) {
	c.mu.Lock()
	streams := make([]*video.Stream, 0, len(c.streams))
	for _, st := range c.streams {
		streams = append(streams, st)
	}
	c.mu.Unlock()
	for _, st := range streams {
		st.OnUpdateMark(mark)
	}
}

// dispatchDraw parses one draw message with parse, then fixes up and
// dispatches the resulting record onto its target surface's canvas. Every
// DISPLAY_DRAW_* case in HandleMessage (other than DRAW_STROKE, which
// needs the body to size its path) routes through here.
func (c *Channel) dispatchDraw(body []byte, parse func([]byte) (spice.DrawRecord, error)) error {
	rec, err := parse(body)
	if err != nil {
		return err
	}
	return c.onDraw(rec, body)
}

// onDraw fixes up and dispatches a parsed draw record onto its target
// surface's canvas, then invalidates the bounding box on the screen. body
// is the raw message body the record's server addresses are relative to;
// per spec.md section 4.G those addresses are fixed up against base 0,
// the same convention onDrawStroke uses for its path address.
func (c *Channel) onDraw(rec spice.DrawRecord, body []byte) error {
	c.mu.Lock()
	s, ok := c.surfaces[rec.SurfaceID]
	resolver := c.resolver
	screen := c.screen
	c.mu.Unlock()
	if !ok {
		// Outstanding draws to a destroyed surface are nops, per spec.md
		// section 4.H.
		return nil
	}

	if err := canvas.Dispatch(s.canvas, resolver, rec, body, 0); err != nil {
		return err
	}
	if screen != nil {
		screen.Invalidate(rec.SurfaceID, rec.Box, false)
	}
	return nil
}

func (c *Channel) onDrawStroke(body []byte) error {
	rec, err := spice.UnmarshalDrawStroke(body)
	if err != nil {
		return err
	}
	off, err := canvas.FixUp(body, rec.Stroke.PathAddr, 0)
	if err != nil {
		return err
	}
	points, err := spice.UnmarshalPath(body, off)
	if err != nil {
		return err
	}

	c.mu.Lock()
	s, ok := c.surfaces[rec.SurfaceID]
	screen := c.screen
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := s.canvas.Stroke(rec.Box, rec.Clip, points, rec.Stroke.Brush); err != nil {
		return err
	}
	if screen != nil {
		screen.Invalidate(rec.SurfaceID, rec.Box, false)
	}
	return nil
}
