package inputs

import (
	"testing"

	"github.com/breeze-rmm/spicec/internal/channel"
	"github.com/breeze-rmm/spicec/internal/wire"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

func newTestChannel() *Channel {
	base := channel.New(channel.Config{ChannelType: spice.ChannelInputs}, func() (*wire.Conn, error) { return nil, nil }, nil)
	return &Channel{Base: base}
}

func TestInputsInitSetsModifiers(t *testing.T) {
	c := newTestChannel()
	if err := c.HandleMessage(spice.MsgInputsInit, []byte{0x3}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if got := c.Modifiers(); got != 0x3 {
		t.Fatalf("Modifiers() = %v, want 0x3", got)
	}
}

func TestKeyModifiersUpdatesState(t *testing.T) {
	c := newTestChannel()
	if err := c.HandleMessage(spice.MsgInputsKeyModifiers, spice.KeyModifiers{Modifiers: 0x7}.Marshal()); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if got := c.Modifiers(); got != 0x7 {
		t.Fatalf("Modifiers() = %v, want 0x7", got)
	}
}

func TestMouseMoveUsesModeSpecificMessage(t *testing.T) {
	c := newTestChannel()
	c.SetMode(ModeClient)
	if err := c.MouseMove(0, 0, 100, 200, 0, 1); err != nil {
		t.Fatalf("MouseMove: %v", err)
	}

	c.SetMode(ModeServer)
	if err := c.MouseMove(5, -5, 0, 0, 0, 0); err != nil {
		t.Fatalf("MouseMove: %v", err)
	}
}

func TestMouseMotionAckDrainsBunch(t *testing.T) {
	c := newTestChannel()
	c.SetMode(ModeClient)
	for i := 0; i < spice.MouseMotionAckBunch+2; i++ {
		c.MouseMove(0, 0, uint32(i), 0, 0, 0)
	}
	c.mu.Lock()
	before := c.outstandingMotion
	c.mu.Unlock()
	if before != spice.MouseMotionAckBunch+2 {
		t.Fatalf("outstandingMotion = %d, want %d", before, spice.MouseMotionAckBunch+2)
	}

	if err := c.HandleMessage(spice.MsgInputsMouseMotionAck, nil); err != nil {
		t.Fatalf("HandleMessage ack: %v", err)
	}
	c.mu.Lock()
	after := c.outstandingMotion
	c.mu.Unlock()
	if after != 2 {
		t.Fatalf("outstandingMotion after ack = %d, want 2", after)
	}
}

func TestKeyDownUpSend(t *testing.T) {
	c := newTestChannel()
	if err := c.KeyDown(0x1e); err != nil {
		t.Fatalf("KeyDown: %v", err)
	}
	if err := c.KeyUp(0x1e); err != nil {
		t.Fatalf("KeyUp: %v", err)
	}
}
