// Package cursor implements the cursor channel of spec.md section 4.J: a
// reference-counted shape cache shared across every cursor channel of a
// session, plus the position/visibility/trail state the display layer
// composites on top of the framebuffer. Grounded on the teacher's
// clipboard proxy (internal/remote/clipboard/clipboard_proxy.go), a small
// reference-counted shared-state handoff, generalized here from a single
// get/set value to a cache of shapes keyed by server-assigned id.
package cursor

import (
	"sync"

	"github.com/breeze-rmm/spicec/internal/cache"
	"github.com/breeze-rmm/spicec/internal/channel"
	"github.com/breeze-rmm/spicec/internal/logging"
	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

var log = logging.L("cursor")

// Shape is one decoded cursor: its header plus raw pixel/mask data, as
// delivered on the wire (spec.md leaves pixel decoding to the screen
// back-end, so this package only caches the server's bytes).
type Shape struct {
	Header spice.CursorHeader
	Data   []byte
}

// Layer receives the cursor's visual state, implemented by whatever owns
// on-screen presentation (mirrors display.Screen's split of concerns).
type Layer struct {
	// Show is called to install/replace the visible cursor.
	Show func(shape Shape, position spice.Point16)
	// Hide is called when the cursor should be hidden without destroying
	// its cached shape.
	Hide func()
	// Move is called on a bare position update with no shape change.
	Move func(position spice.Point16)
}

// Channel is one cursor channel's session state. The shape cache is
// shared across every cursor channel of a session the way the pixmap
// cache is shared across display channels (spec.md section 3).
type Channel struct {
	Base *channel.Base

	mu        sync.Mutex
	shapes    *cache.Cache
	visible   bool
	position  spice.Point16
	trail     spice.CursorTrail
	currentID uint64 // unique_id of the installed shape, 0 if none

	layer *Layer
}

// Config bundles what a cursor channel needs at construction.
type Config struct {
	Layer *Layer
}

// New constructs a cursor Channel. shapes is owned by the caller and
// shared across every cursor channel in the session.
func New(cfg Config, shapes *cache.Cache) *Channel {
	return &Channel{
		shapes: shapes,
		layer:  cfg.Layer,
	}
}

// AttachLayer reparents this cursor channel to a display's screen
// coordinate space, per spec.md section 4.J ("When attached to a display
// by id, the cursor layer is reparented to that display's screen").
func (c *Channel) AttachLayer(layer *Layer) {
	c.mu.Lock()
	c.layer = layer
	visible, pos, shape, haveShape := c.stateLocked()
	c.mu.Unlock()

	if layer == nil {
		return
	}
	if !visible {
		layer.Hide()
		return
	}
	if haveShape {
		layer.Show(shape, pos)
	} else {
		layer.Move(pos)
	}
}

func (c *Channel) stateLocked() (visible bool, pos spice.Point16, shape Shape, ok bool) {
	return c.visible, c.position, c.currentShapeLocked()
}

func (c *Channel) currentShapeLocked() (Shape, bool) {
	// The cache holds at most the shapes referenced by the current
	// session; the "current" one is tracked by currentID.
	if c.currentID == 0 {
		return Shape{}, false
	}
	v, ok := c.shapes.TryGet(c.currentID)
	if !ok {
		return Shape{}, false
	}
	return v.(Shape), true
}

// OnConnected implements channel.Handler.
func (c *Channel) OnConnected() {}

// OnDisconnected implements channel.Handler.
func (c *Channel) OnDisconnected(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = false
	if c.layer != nil {
		c.layer.Hide()
	}
}

// HandleMessage implements channel.Handler.
func (c *Channel) HandleMessage(msgType uint16, body []byte) error {
	switch msgType {
	case spice.MsgCursorInit:
		init, err := spice.UnmarshalCursorInit(body)
		if err != nil {
			return err
		}
		return c.onInit(init)

	case spice.MsgCursorReset:
		c.onReset()
		return nil

	case spice.MsgCursorSet:
		set, err := spice.UnmarshalCursorSet(body)
		if err != nil {
			return err
		}
		return c.onSet(set)

	case spice.MsgCursorMove:
		mv, err := spice.UnmarshalCursorMove(body)
		if err != nil {
			return err
		}
		c.onMove(mv.Position)
		return nil

	case spice.MsgCursorHide:
		c.onHide()
		return nil

	case spice.MsgCursorTrail:
		tr, err := spice.UnmarshalCursorTrail(body)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.trail = tr
		c.mu.Unlock()
		return nil

	case spice.MsgCursorInvalOne:
		inv, err := spice.UnmarshalCursorInvalOne(body)
		if err != nil {
			return err
		}
		c.shapes.Evict(inv.UniqueID)
		return nil

	case spice.MsgCursorInvalAll:
		c.shapes.Clear()
		return nil

	default:
		return spiceerr.Protocol("cursor: unknown message type %d", msgType)
	}
}

func (c *Channel) onInit(init spice.CursorInit) error {
	shape := Shape{Header: init.Shape, Data: append([]byte(nil), init.Data...)}
	if err := c.shapes.Put(init.Shape.UniqueID, shape, len(shape.Data)); err != nil {
		return err
	}

	c.mu.Lock()
	c.currentID = init.Shape.UniqueID
	c.position = init.Position
	c.trail = spice.CursorTrail{Length: init.TrailLen, Frequency: init.TrailFreq}
	c.visible = init.VisFlags != 0
	layer := c.layer
	visible := c.visible
	pos := c.position
	c.mu.Unlock()

	if layer == nil {
		return nil
	}
	if visible {
		layer.Show(shape, pos)
	} else {
		layer.Hide()
	}
	return nil
}

func (c *Channel) onReset() {
	c.mu.Lock()
	c.visible = false
	c.currentID = 0
	layer := c.layer
	c.mu.Unlock()
	if layer != nil {
		layer.Hide()
	}
}

func (c *Channel) onSet(set spice.CursorSet) error {
	shape := Shape{Header: set.Shape, Data: append([]byte(nil), set.Data...)}
	if err := c.shapes.Put(set.Shape.UniqueID, shape, len(shape.Data)); err != nil {
		return err
	}

	c.mu.Lock()
	c.currentID = set.Shape.UniqueID
	c.position = set.Position
	c.visible = set.VisFlags != 0
	layer := c.layer
	pos := c.position
	visible := c.visible
	c.mu.Unlock()

	if layer == nil {
		return nil
	}
	if visible {
		layer.Show(shape, pos)
	} else {
		layer.Hide()
	}
	return nil
}

func (c *Channel) onMove(pos spice.Point16) {
	c.mu.Lock()
	c.position = pos
	layer := c.layer
	visible := c.visible
	c.mu.Unlock()
	if layer != nil && visible {
		layer.Move(pos)
	}
}

func (c *Channel) onHide() {
	c.mu.Lock()
	c.visible = false
	layer := c.layer
	c.mu.Unlock()
	if layer != nil {
		layer.Hide()
	}
}
