package mainchannel

import (
	"encoding/binary"
	"testing"

	"github.com/breeze-rmm/spicec/internal/channel"
	"github.com/breeze-rmm/spicec/internal/wire"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

type recordingListener struct {
	channels       []spice.ChannelID
	mouseMode      uint32
	mouseModeSeen  bool
	notify         spice.Notify
	agentConnected []bool
	agentData      [][]byte
	migrateBegin   *spice.MainMigrateBegin
	migrateCancel  bool
	switchHost     *spice.MainMigrateSwitchHost
}

func (r *recordingListener) OnChannelsList(sessionID uint32, channels []spice.ChannelID) {
	r.channels = channels
}
func (r *recordingListener) OnMouseModeChanged(mode uint32) { r.mouseMode = mode; r.mouseModeSeen = true }
func (r *recordingListener) OnNotify(n spice.Notify)        { r.notify = n }
func (r *recordingListener) OnAgentConnected(c bool)        { r.agentConnected = append(r.agentConnected, c) }
func (r *recordingListener) OnAgentData(d []byte)           { r.agentData = append(r.agentData, d) }
func (r *recordingListener) OnMigrateBegin(m spice.MainMigrateBegin) { r.migrateBegin = &m }
func (r *recordingListener) OnMigrateCancel()                        { r.migrateCancel = true }
func (r *recordingListener) OnMigrateSwitchHost(m spice.MainMigrateSwitchHost) { r.switchHost = &m }

func newTestChannel(l Listener) *Channel {
	c := New(l, &Clock{})
	c.Base = channel.New(channel.Config{ChannelType: spice.ChannelMain}, func() (*wire.Conn, error) { return nil, nil }, c)
	return c
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func mainInitBody(sessionID uint32, supported, current uint32, agentConnected uint32, mmTime uint32) []byte {
	var body []byte
	body = append(body, u32le(sessionID)...)
	body = append(body, u32le(0)...) // display channels hint
	body = append(body, u32le(supported)...)
	body = append(body, u32le(current)...)
	body = append(body, u32le(agentConnected)...)
	body = append(body, u32le(0)...) // agent tokens
	body = append(body, u32le(mmTime)...)
	body = append(body, u32le(0)...) // ram hint
	return body
}

func TestOnInitSeedsClockAndSendsClientInfo(t *testing.T) {
	l := &recordingListener{}
	c := newTestChannel(l)

	body := mainInitBody(7, spice.MouseModeClient|spice.MouseModeServer, spice.MouseModeServer, 1, 5000)
	if err := c.HandleMessage(spice.MsgMainInit, body); err != nil {
		t.Fatalf("HandleMessage init: %v", err)
	}
	if got := c.Clock().Now(); got < 5000 {
		t.Fatalf("Clock().Now() = %d, want >= 5000", got)
	}
}

func TestChannelsListForwardsToListener(t *testing.T) {
	l := &recordingListener{}
	c := newTestChannel(l)

	var body []byte
	body = append(body, u32le(2)...)
	body = append(body, byte(spice.ChannelDisplay), 0)
	body = append(body, byte(spice.ChannelCursor), 0)
	if err := c.HandleMessage(spice.MsgMainChannelsList, body); err != nil {
		t.Fatalf("HandleMessage channels list: %v", err)
	}
	if len(l.channels) != 2 || l.channels[0].Type != spice.ChannelDisplay {
		t.Fatalf("unexpected channels: %+v", l.channels)
	}
}

func TestMouseModeForwardsToListener(t *testing.T) {
	l := &recordingListener{}
	c := newTestChannel(l)

	var body []byte
	body = append(body, u32le(spice.MouseModeClient)...)
	body = append(body, u32le(spice.MouseModeClient)...)
	if err := c.HandleMessage(spice.MsgMainMouseMode, body); err != nil {
		t.Fatalf("HandleMessage mouse mode: %v", err)
	}
	if !l.mouseModeSeen || l.mouseMode != spice.MouseModeClient {
		t.Fatalf("mouse mode not forwarded, got %+v", l)
	}
}

func TestAgentDataGatedByTokens(t *testing.T) {
	l := &recordingListener{}
	c := newTestChannel(l)

	if err := c.SendAgentData([]byte("hello")); err == nil {
		t.Fatal("expected an error sending agent data with zero tokens")
	}

	tokBody := u32le(3)
	if err := c.HandleMessage(spice.MsgMainAgentTokens, tokBody); err != nil {
		t.Fatalf("HandleMessage agent tokens: %v", err)
	}
	if err := c.SendAgentData([]byte("hello")); err != nil {
		t.Fatalf("SendAgentData after grant: %v", err)
	}
}

func TestMigrateBeginTransitionsMigrationState(t *testing.T) {
	l := &recordingListener{}
	c := newTestChannel(l)

	var body []byte
	body = append(body, u32le(spice.MigrateFlagNeedFlush)...)
	body = append(body, u32le(uint32(len("host")))...)
	body = append(body, []byte("host")...)
	body = append(body, u32le(1234)...)
	body = append(body, u32le(0)...)
	body = append(body, u32le(0)...) // empty cert subject

	if err := c.HandleMessage(spice.MsgMainMigrateBegin, body); err != nil {
		t.Fatalf("HandleMessage migrate begin: %v", err)
	}
	if c.Base.MigrationState() != channel.MigrationFlushSent {
		t.Fatalf("migration state = %v, want MigrationFlushSent", c.Base.MigrationState())
	}
	if l.migrateBegin == nil || l.migrateBegin.Host != "host" {
		t.Fatalf("listener did not receive migrate begin: %+v", l.migrateBegin)
	}

	if err := c.ReportMigrateConnected(); err != nil {
		t.Fatalf("ReportMigrateConnected: %v", err)
	}
	if c.Base.MigrationState() != channel.MigrationNormal {
		t.Fatalf("migration state after connected = %v, want Normal", c.Base.MigrationState())
	}
}
