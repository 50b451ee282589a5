// Package inputs implements the inputs channel of spec.md section 4.K:
// outbound keyboard scan codes and mouse events, arbitrated between
// server-relative and client-absolute mouse modes, with lossy best-effort
// flow control on motion packets. The event taxonomy (move/press/release,
// key down/up) is grounded on the teacher's platform input handlers
// (internal/remote/desktop/input_linux.go, input_windows.go), direction
// reversed: this client captures local input and sends it, rather than
// receiving commands and injecting them.
package inputs

import (
	"sync"
	"sync/atomic"

	"github.com/breeze-rmm/spicec/internal/channel"
	"github.com/breeze-rmm/spicec/internal/logging"
	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

var log = logging.L("inputs")

// Mode is the session's arbitrated mouse mode, kept here so the channel
// can pick which outbound message shape to send without consulting the
// main channel on every event.
type Mode int

const (
	ModeServer Mode = iota // client sends relative MOUSE_MOTION
	ModeClient              // client sends absolute MOUSE_POSITION
)

// Channel is the inputs channel: stateless on the wire beyond modifier
// sync and the motion-ack bunch counter.
type Channel struct {
	Base *channel.Base

	mode atomic.Int32

	mu               sync.Mutex
	modifiers        uint8
	buttonsState     uint16
	outstandingMotion int
}

// New constructs an inputs Channel. It starts in server-relative mode and
// stays there until SetMode switches it.
func New() *Channel {
	return &Channel{}
}

// SetMode switches which outbound mouse message shape this channel uses,
// called by the Application when the main channel reports the server's
// arbitrated mouse mode.
func (c *Channel) SetMode(m Mode) {
	c.mode.Store(int32(m))
}

func (c *Channel) currentMode() Mode { return Mode(c.mode.Load()) }

// OnConnected implements channel.Handler.
func (c *Channel) OnConnected() {}

// OnDisconnected implements channel.Handler.
func (c *Channel) OnDisconnected(err error) {
	c.mu.Lock()
	c.outstandingMotion = 0
	c.mu.Unlock()
}

// HandleMessage implements channel.Handler.
func (c *Channel) HandleMessage(msgType uint16, body []byte) error {
	switch msgType {
	case spice.MsgInputsInit:
		init, err := spice.UnmarshalInputsInit(body)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.modifiers = init.Modifiers
		c.mu.Unlock()
		return nil

	case spice.MsgInputsKeyModifiers:
		km, err := spice.UnmarshalKeyModifiers(body)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.modifiers = km.Modifiers
		c.mu.Unlock()
		return nil

	case spice.MsgInputsMouseMotionAck:
		if err := spice.UnmarshalMouseMotionAck(body); err != nil {
			return err
		}
		c.mu.Lock()
		if c.outstandingMotion >= spice.MouseMotionAckBunch {
			c.outstandingMotion -= spice.MouseMotionAckBunch
		} else {
			c.outstandingMotion = 0
		}
		c.mu.Unlock()
		return nil

	default:
		return spiceerr.Protocol("inputs: unknown message type %d", msgType)
	}
}

// KeyDown sends a scan code press.
func (c *Channel) KeyDown(scanCode uint32) error {
	return c.Base.Send(spice.MsgcInputsKeyDown, spice.KeyDown{Code: scanCode}.Marshal())
}

// KeyUp sends a scan code release.
func (c *Channel) KeyUp(scanCode uint32) error {
	return c.Base.Send(spice.MsgcInputsKeyUp, spice.KeyUp{Code: scanCode}.Marshal())
}

// SyncModifiers announces the client's current modifier-key state, sent
// once at connect and whenever the local state drifts from the server's.
func (c *Channel) SyncModifiers(mods uint8) error {
	return c.Base.Send(spice.MsgcInputsKeyModifiers, spice.KeyModifiers{Modifiers: mods}.Marshal())
}

// MouseMove reports motion. In ModeServer it sends a relative delta; in
// ModeClient it sends an absolute position for displayID and tracks the
// outstanding-ack bunch counter, but per spec.md section 4.K this never
// blocks waiting for the ack — motion is a lossy best-effort stream.
func (c *Channel) MouseMove(dx, dy int32, x, y uint32, displayID uint8, buttons uint16) error {
	c.mu.Lock()
	c.buttonsState = buttons
	c.mu.Unlock()

	switch c.currentMode() {
	case ModeClient:
		c.mu.Lock()
		c.outstandingMotion++
		outstanding := c.outstandingMotion
		c.mu.Unlock()
		if outstanding > spice.MouseMotionAckBunch*4 {
			log.Warn("mouse position acks falling behind", "outstanding", outstanding)
		}
		return c.Base.Send(spice.MsgcInputsMousePosition, spice.MousePosition{
			X: x, Y: y, ButtonsState: buttons, DisplayID: displayID,
		}.Marshal())
	default:
		return c.Base.Send(spice.MsgcInputsMouseMotion, spice.MouseMotion{
			DX: dx, DY: dy, ButtonsState: buttons,
		}.Marshal())
	}
}

// MousePress reports a button going down.
func (c *Channel) MousePress(button uint8, buttons uint16) error {
	c.mu.Lock()
	c.buttonsState = buttons
	c.mu.Unlock()
	return c.Base.Send(spice.MsgcInputsMousePress, spice.MousePress{Button: button, ButtonsState: buttons}.Marshal())
}

// MouseRelease reports a button going up.
func (c *Channel) MouseRelease(button uint8, buttons uint16) error {
	c.mu.Lock()
	c.buttonsState = buttons
	c.mu.Unlock()
	return c.Base.Send(spice.MsgcInputsMouseRelease, spice.MouseRelease{Button: button, ButtonsState: buttons}.Marshal())
}

// Modifiers returns the last modifier state the server reported.
func (c *Channel) Modifiers() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modifiers
}
