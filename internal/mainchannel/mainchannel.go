// Package mainchannel implements the main channel of spec.md section
// 4.L: session bootstrap (INIT), the channel list that drives which
// other channels get opened, mouse-mode arbitration, multi-media clock
// sync, agent data relay, and migration coordination. Grounded on the
// teacher's session bootstrap pattern (internal/sessionbroker/session.go,
// broker.go — one struct owning the session's shared state) and the
// control-message dispatch table in internal/remote/desktop/session_control.go.
package mainchannel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/breeze-rmm/spicec/internal/channel"
	"github.com/breeze-rmm/spicec/internal/logging"
	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

var log = logging.L("mainchannel")

// Clock is the session-shared multi-media time source, advanced by
// MSG_MAIN_MULTI_MEDIA_TIME and free-running between updates so video
// streams (internal/video) can schedule presentation without polling the
// main channel directly.
type Clock struct {
	baseMMTime atomic.Uint32
	baseWall   atomic.Int64 // UnixNano at the moment baseMMTime was set
}

// Now returns the current estimated mm-time, per spec.md section 9's
// wrap-aware uint32 milliseconds domain. Arithmetic on the returned value
// must use wrap-aware subtraction (int32(a-b)), not plain signed compare.
func (c *Clock) Now() uint32 {
	base := c.baseMMTime.Load()
	wall := c.baseWall.Load()
	if wall == 0 {
		return base
	}
	elapsed := time.Since(time.Unix(0, wall)).Milliseconds()
	return base + uint32(elapsed)
}

func (c *Clock) set(mmTime uint32) {
	c.baseMMTime.Store(mmTime)
	c.baseWall.Store(time.Now().UnixNano())
}

// Listener receives session-level events the application (internal/app)
// acts on: which channels to open, mouse-mode changes, migration
// lifecycle, and user-visible notifications.
type Listener interface {
	OnChannelsList(sessionID uint32, channels []spice.ChannelID)
	OnMouseModeChanged(mode uint32)
	OnNotify(n spice.Notify)
	OnAgentConnected(connected bool)
	OnAgentData(data []byte)
	OnMigrateBegin(m spice.MainMigrateBegin)
	OnMigrateCancel()
	OnMigrateSwitchHost(m spice.MainMigrateSwitchHost)
}

// Channel is the main channel's session state.
type Channel struct {
	Base *channel.Base

	listener Listener
	clock    *Clock

	mu                  sync.Mutex
	sessionID           uint32
	supportedMouseModes uint32
	currentMouseMode    uint32
	agentConnected      bool
	agentTokens         uint32
}

// New constructs a main Channel. clock is owned by the caller and shared
// with internal/video's stream schedulers.
func New(listener Listener, clock *Clock) *Channel {
	return &Channel{listener: listener, clock: clock}
}

// Clock returns the session clock this channel advances, so the
// application can hand it to every display channel's video engine.
func (c *Channel) Clock() *Clock { return c.clock }

// OnConnected implements channel.Handler. It announces the client's
// capabilities and requests client-absolute mouse mode per spec.md
// section 4.L ("main requests client-absolute mode").
func (c *Channel) OnConnected() {
	if err := c.Base.Send(spice.MsgcMainAttachChannels, spice.AttachChannels{}.Marshal()); err != nil {
		log.Warn("attach_channels send failed", "error", err)
	}
	if err := c.Base.Send(spice.MsgcMainMouseModeRequest, spice.MouseModeRequest{Mode: spice.MouseModeClient}.Marshal()); err != nil {
		log.Warn("mouse_mode_request send failed", "error", err)
	}
}

// OnDisconnected implements channel.Handler. It only logs the fault: it
// does not end the session, and Base.Run goes on to reconnect the main
// channel.
func (c *Channel) OnDisconnected(err error) {
	log.Warn("main channel disconnected", "error", err)
}

// HandleMessage implements channel.Handler.
func (c *Channel) HandleMessage(msgType uint16, body []byte) error {
	switch msgType {
	case spice.MsgMainInit:
		init, err := spice.UnmarshalMainInit(body)
		if err != nil {
			return err
		}
		c.onInit(init)
		return nil

	case spice.MsgMainChannelsList:
		list, err := spice.UnmarshalMainChannelsList(body)
		if err != nil {
			return err
		}
		c.mu.Lock()
		sid := c.sessionID
		c.mu.Unlock()
		if c.listener != nil {
			c.listener.OnChannelsList(sid, list.Channels)
		}
		return nil

	case spice.MsgMainMouseMode:
		mm, err := spice.UnmarshalMainMouseMode(body)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.supportedMouseModes = mm.Supported
		c.currentMouseMode = mm.Current
		c.mu.Unlock()
		if c.listener != nil {
			c.listener.OnMouseModeChanged(mm.Current)
		}
		return nil

	case spice.MsgMainMultiMediaTime:
		mt, err := spice.UnmarshalMainMultiMediaTime(body)
		if err != nil {
			return err
		}
		c.clock.set(mt.Time)
		return nil

	case spice.MsgMainAgentConnected:
		c.mu.Lock()
		c.agentConnected = true
		c.mu.Unlock()
		if c.listener != nil {
			c.listener.OnAgentConnected(true)
		}
		return nil

	case spice.MsgMainAgentDisconnected:
		c.mu.Lock()
		c.agentConnected = false
		c.mu.Unlock()
		if c.listener != nil {
			c.listener.OnAgentConnected(false)
		}
		return nil

	case spice.MsgMainAgentData:
		ad, err := spice.UnmarshalAgentData(body)
		if err != nil {
			return err
		}
		if c.listener != nil {
			c.listener.OnAgentData(ad.Data)
		}
		return nil

	case spice.MsgMainAgentTokens:
		at, err := spice.UnmarshalMainAgentTokens(body)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.agentTokens += at.NumTokens
		c.mu.Unlock()
		return nil

	case spice.MsgMainMigrateBegin:
		mb, err := spice.UnmarshalMainMigrateBegin(body)
		if err != nil {
			return err
		}
		c.Base.BeginMigrationFlush()
		if c.listener != nil {
			c.listener.OnMigrateBegin(mb)
		}
		return nil

	case spice.MsgMainMigrateCancel:
		c.Base.CompleteMigration()
		if c.listener != nil {
			c.listener.OnMigrateCancel()
		}
		return nil

	case spice.MsgMainMigrateSwitchHost:
		ms, err := spice.UnmarshalMainMigrateSwitchHost(body)
		if err != nil {
			return err
		}
		if c.listener != nil {
			c.listener.OnMigrateSwitchHost(ms)
		}
		return nil

	case spice.MsgMainName:
		_, err := spice.UnmarshalMainName(body)
		return err

	case spice.MsgMainUUID:
		_, err := spice.UnmarshalMainUUID(body)
		return err

	case spice.MsgNotify:
		n, err := spice.UnmarshalNotify(body)
		if err != nil {
			return err
		}
		if c.listener != nil {
			c.listener.OnNotify(n)
		}
		return nil

	default:
		return spiceerr.Protocol("mainchannel: unknown message type %d", msgType)
	}
}

func (c *Channel) onInit(init spice.MainInit) {
	c.mu.Lock()
	c.sessionID = init.SessionID
	c.supportedMouseModes = init.SupportedMouseModes
	c.currentMouseMode = init.CurrentMouseMode
	c.agentConnected = init.AgentConnected
	c.agentTokens = init.AgentTokens
	c.mu.Unlock()
	c.clock.set(init.MultiMediaTime)

	if err := c.Base.Send(spice.MsgcMainClientInfo, spice.ClientInfo{CacheSize: 0}.Marshal()); err != nil {
		log.Warn("client_info send failed", "error", err)
	}
	if init.AgentConnected {
		if err := c.Base.Send(spice.MsgcMainAgentStart, spice.AgentStart{NumTokens: 10}.Marshal()); err != nil {
			log.Warn("agent_start send failed", "error", err)
		}
	}

	log.Info("session initialized", "sessionId", init.SessionID, "agentConnected", init.AgentConnected)
}

// SendAgentData relays client-side agent traffic (e.g. clipboard) to the
// guest, consuming one of the tokens granted by SPICE_MSG_MAIN_AGENT_TOKENS.
func (c *Channel) SendAgentData(data []byte) error {
	c.mu.Lock()
	if c.agentTokens == 0 {
		c.mu.Unlock()
		return spiceerr.Resource("mainchannel: no agent tokens available")
	}
	c.agentTokens--
	c.mu.Unlock()
	return c.Base.Send(spice.MsgcMainAgentData, spice.AgentData{Data: data}.Marshal())
}

// ReportMigrateConnected tells the server the migration target link
// succeeded and returns the channel's migration state to Normal.
func (c *Channel) ReportMigrateConnected() error {
	c.Base.CompleteMigration()
	return c.Base.Send(spice.MsgcMainMigrateConnected, spice.MigrateConnected{}.Marshal())
}

// ReportMigrateConnectFailed reverts to the source per spec.md section
// 4.B ("If the target is unreachable, the client reverts to the source").
func (c *Channel) ReportMigrateConnectFailed() error {
	c.Base.CompleteMigration()
	return c.Base.Send(spice.MsgcMainMigrateConnectFailed, spice.MigrateConnectFailed{}.Marshal())
}
