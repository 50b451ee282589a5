// Package app wires one session's pieces together: the event loop, the
// hotkey/sticky-key input layer, and the set of channels a session opens
// off the main channel's channel list (spec.md section 4.L), implementing
// the failure semantics of section 4.M (a main-channel fault ends the
// session; a secondary-channel fault is isolated to that channel).
// Grounded on the teacher's session struct (internal/sessionbroker,
// internal/remote/desktop/session.go) that owns one remote session's
// component set and reacts to connect/disconnect notifications from them.
package app

import (
	"sync"

	"github.com/breeze-rmm/spicec/internal/cursor"
	"github.com/breeze-rmm/spicec/internal/eventloop"
	"github.com/breeze-rmm/spicec/internal/inputs"
	"github.com/breeze-rmm/spicec/internal/logging"
	"github.com/breeze-rmm/spicec/internal/mainchannel"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

var log = logging.L("app")

// ChannelOpener opens and starts a secondary channel the main channel's
// channel list named. cmd/spicec supplies the concrete dialer/TLS
// wiring; this package only decides which channels to open and reacts to
// the channels it is handed back via AddDisplay/AddCursor.
type ChannelOpener interface {
	OpenDisplay(id uint8)
	OpenCursor(id uint8)
	OpenInputs()
	OpenPlayback(id uint8)
	OpenRecord(id uint8)
}

// Config bundles what an Application needs at construction.
type Config struct {
	Loop    *eventloop.Loop
	Opener  ChannelOpener
	HotKeys []HotKey // nil uses DefaultHotKeys()
}

// Application is the per-session coordinator, implementing
// mainchannel.Listener and exposing the platform-facing input entry
// points (HandleKeyDown/Up, command dispatch).
type Application struct {
	loop   *eventloop.Loop
	opener ChannelOpener

	mu       sync.Mutex
	pressed  map[uint32]bool
	hotkeys  *hotkeyEngine
	sticky   stickyState
	screens  map[uint32]*Screen
	monitors *MonitorSet
	cursors  map[uint8]*cursor.Channel

	fullScreen     bool
	cursorReleased bool

	mainCh  *mainchannel.Channel
	inputCh *inputs.Channel
}

// New constructs an Application around already-built main and inputs
// channels; display and cursor channels register themselves as they
// connect via AddScreen/AddCursor.
func New(cfg Config, main *mainchannel.Channel, in *inputs.Channel) *Application {
	table := cfg.HotKeys
	if table == nil {
		table = DefaultHotKeys()
	}
	return &Application{
		loop:     cfg.Loop,
		opener:   cfg.Opener,
		pressed:  make(map[uint32]bool),
		hotkeys:  newHotkeyEngine(table),
		screens:  make(map[uint32]*Screen),
		monitors: newMonitorSet(),
		cursors:  make(map[uint8]*cursor.Channel),
		mainCh:   main,
		inputCh:  in,
	}
}

// AddScreen registers a Screen by monitor id. A cursor channel already
// registered for that slot is reparented onto it.
func (a *Application) AddScreen(id uint32, s *Screen) {
	a.mu.Lock()
	a.screens[id] = s
	var c *cursor.Channel
	if id <= 255 {
		c = a.cursors[uint8(id)]
	}
	a.mu.Unlock()
	if c != nil {
		c.AttachLayer(s.CursorLayer())
	}
}

// Screen returns the registered screen for id, if any.
func (a *Application) Screen(id uint32) (*Screen, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.screens[id]
	return s, ok
}

// UpdateMonitors replaces the session's monitor layout.
func (a *Application) UpdateMonitors(monitors []Monitor) {
	a.monitors.Update(monitors)
}

// AddCursor registers a cursor channel and attaches it to screen 0's
// layer, the common single-monitor default. A screen registered later
// under the cursor's id takes the cursor over (see AddScreen), and
// AttachCursorToScreen moves it explicitly.
func (a *Application) AddCursor(id uint8, c *cursor.Channel) {
	a.mu.Lock()
	a.cursors[id] = c
	screen := a.screens[0]
	a.mu.Unlock()
	if screen != nil {
		c.AttachLayer(screen.CursorLayer())
	}
}

// AttachCursorToScreen reparents a cursor channel onto a different
// screen, per spec.md section 4.J.
func (a *Application) AttachCursorToScreen(cursorID uint8, screenID uint32) {
	a.mu.Lock()
	c, cok := a.cursors[cursorID]
	s, sok := a.screens[screenID]
	a.mu.Unlock()
	if !cok || !sok {
		return
	}
	c.AttachLayer(s.CursorLayer())
}

// --- mainchannel.Listener ---

// OnChannelsList opens every secondary channel the server named, per
// spec.md section 4.L.
func (a *Application) OnChannelsList(sessionID uint32, channels []spice.ChannelID) {
	if a.opener == nil {
		return
	}
	for _, ch := range channels {
		switch ch.Type {
		case spice.ChannelDisplay:
			a.opener.OpenDisplay(ch.ID)
		case spice.ChannelCursor:
			a.opener.OpenCursor(ch.ID)
		case spice.ChannelInputs:
			a.opener.OpenInputs()
		case spice.ChannelPlayback:
			a.opener.OpenPlayback(ch.ID)
		case spice.ChannelRecord:
			a.opener.OpenRecord(ch.ID)
		default:
			log.Info("channel list named an unhandled channel type", "type", ch.Type.String(), "id", ch.ID)
		}
	}
}

// OnMouseModeChanged switches the inputs channel's outbound message
// shape to match the server's arbitrated mode.
func (a *Application) OnMouseModeChanged(mode uint32) {
	if a.inputCh == nil {
		return
	}
	if mode == spice.MouseModeClient {
		a.inputCh.SetMode(inputs.ModeClient)
	} else {
		a.inputCh.SetMode(inputs.ModeServer)
	}
}

// OnNotify surfaces a server diagnostic on every screen.
func (a *Application) OnNotify(n spice.Notify) {
	log.Info("server notify", "severity", n.Severity, "message", n.Message)
	for _, s := range a.allScreens() {
		s.ShowInfo(n.Message)
	}
}

// OnAgentConnected records the guest agent's presence. Clipboard/agent
// payload routing lives above this package (cmd/spicec), which can wrap
// Application to observe this transition.
func (a *Application) OnAgentConnected(connected bool) {
	log.Info("agent connection changed", "connected", connected)
}

// OnAgentData is a hook for the owning layer to override; the base
// Application only logs receipt.
func (a *Application) OnAgentData(data []byte) {
	log.Debug("agent data received", "bytes", len(data))
}

func (a *Application) OnMigrateBegin(m spice.MainMigrateBegin) {
	log.Info("migration beginning", "host", m.Host, "port", m.Port)
}

func (a *Application) OnMigrateCancel() {
	log.Info("migration cancelled")
}

func (a *Application) OnMigrateSwitchHost(m spice.MainMigrateSwitchHost) {
	log.Info("migrate switch host", "host", m.Host, "port", m.Port)
}

func (a *Application) allScreens() []*Screen {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Screen, 0, len(a.screens))
	for _, s := range a.screens {
		out = append(out, s)
	}
	return out
}

// --- keyboard input ---
// HandleKeyDown/HandleKeyUp are the platform-facing entry points. They
// post onto the event loop so hotkey matching, the sticky-key trace, and
// the outbound KeyDown/KeyUp send all happen on the loop goroutine, per
// spec.md section 4.C's single-threaded handling guarantee.

// HandleKeyDown processes one key press.
func (a *Application) HandleKeyDown(scanCode uint32) {
	a.loop.Post(func() { a.handleKeyDown(scanCode) })
}

// HandleKeyUp processes one key release.
func (a *Application) HandleKeyUp(scanCode uint32) {
	a.loop.Post(func() { a.handleKeyUp(scanCode) })
}

func (a *Application) handleKeyDown(scanCode uint32) {
	a.mu.Lock()
	wasPressed := a.pressed[scanCode]
	a.pressed[scanCode] = true
	numPressed := len(a.pressed)
	a.mu.Unlock()

	a.sticky.onKeyDown(scanCode, numPressed, wasPressed, a.loop, a.fireStickyMode)

	a.mu.Lock()
	cmd, fired := a.hotkeys.onKeyDown(a.pressed)
	a.mu.Unlock()
	if fired {
		a.dispatch(cmd)
		return
	}

	if a.inputCh != nil && !a.isCursorReleased() {
		if err := a.inputCh.KeyDown(scanCode); err != nil {
			log.Warn("key down send failed", "error", err)
		}
	}
}

func (a *Application) handleKeyUp(scanCode uint32) {
	a.mu.Lock()
	delete(a.pressed, scanCode)
	a.hotkeys.onKeyUp(a.pressed)
	a.mu.Unlock()

	if a.sticky.onKeyUp(scanCode) {
		return // swallowed by the sticky-key trace
	}

	if a.inputCh != nil && !a.isCursorReleased() {
		if err := a.inputCh.KeyUp(scanCode); err != nil {
			log.Warn("key up send failed", "error", err)
		}
	}
}

func (a *Application) fireStickyMode() {
	for _, s := range a.allScreens() {
		s.ShowStickyOverlay()
	}
}

func (a *Application) isCursorReleased() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursorReleased
}

// --- mouse input ---

// HandleMouseMove forwards a motion event to the inputs channel unless
// input capture is currently released.
func (a *Application) HandleMouseMove(dx, dy int32, x, y uint32, displayID uint8, buttons uint16) {
	a.loop.Post(func() {
		if a.inputCh == nil || a.isCursorReleased() {
			return
		}
		if err := a.inputCh.MouseMove(dx, dy, x, y, displayID, buttons); err != nil {
			log.Warn("mouse move send failed", "error", err)
		}
	})
}

// HandleMousePress forwards a button press.
func (a *Application) HandleMousePress(button uint8, buttons uint16) {
	a.loop.Post(func() {
		if a.inputCh == nil || a.isCursorReleased() {
			return
		}
		if err := a.inputCh.MousePress(button, buttons); err != nil {
			log.Warn("mouse press send failed", "error", err)
		}
	})
}

// HandleMouseRelease forwards a button release.
func (a *Application) HandleMouseRelease(button uint8, buttons uint16) {
	a.loop.Post(func() {
		if a.inputCh == nil || a.isCursorReleased() {
			return
		}
		if err := a.inputCh.MouseRelease(button, buttons); err != nil {
			log.Warn("mouse release send failed", "error", err)
		}
	})
}

// --- command dispatch ---

func (a *Application) dispatch(cmd Command) {
	log.Info("hotkey command fired", "command", cmd.String())
	switch cmd {
	case CommandToggleFullScreen:
		a.toggleFullScreen()
	case CommandReleaseCursor:
		a.toggleCursorRelease()
	case CommandSendCtrlAltDel:
		a.sendSequence(ScanCodeCtrl, ScanCodeAlt, ScanCodeDelete)
	case CommandSendCtrlAltEnd:
		a.sendSequence(ScanCodeCtrl, ScanCodeAlt, ScanCodeEnd)
	}
}

func (a *Application) toggleFullScreen() {
	a.mu.Lock()
	a.fullScreen = !a.fullScreen
	want := a.fullScreen
	a.mu.Unlock()
	for _, s := range a.allScreens() {
		s.SetFullScreen(want)
	}
}

func (a *Application) toggleCursorRelease() {
	a.mu.Lock()
	a.cursorReleased = !a.cursorReleased
	a.mu.Unlock()
}

// sendSequence injects a synthetic key-down-all/key-up-in-reverse burst,
// the escape hatch for sequences the local OS intercepts (spec.md
// section 4.M).
func (a *Application) sendSequence(codes ...uint32) {
	if a.inputCh == nil {
		return
	}
	for _, c := range codes {
		if err := a.inputCh.KeyDown(c); err != nil {
			log.Warn("sequence key down failed", "error", err)
		}
	}
	for i := len(codes) - 1; i >= 0; i-- {
		if err := a.inputCh.KeyUp(codes[i]); err != nil {
			log.Warn("sequence key up failed", "error", err)
		}
	}
}

// SetHotKeys replaces the hotkey table wholesale, for the controller's
// `set_hotkeys` operation (spec.md section 6). Currently-pressed keys are
// re-evaluated against the new table so a binding satisfied before the
// swap does not spuriously fire on the next unrelated key_down.
func (a *Application) SetHotKeys(table []HotKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hotkeys = newHotkeyEngine(table)
	a.hotkeys.onKeyUp(a.pressed)
}

// HandleChannelFault reacts to a channel's disconnect per spec.md
// section 4.M: a main-channel fault ends the session; everything else is
// isolated to its own channel (channel.Base keeps reconnecting on its
// own). It returns true if the session was ended.
func (a *Application) HandleChannelFault(channelType spice.ChannelType, err error) bool {
	if channelType == spice.ChannelMain {
		log.Error("main channel fault, ending session", "error", err)
		a.loop.Stop()
		return true
	}
	log.Warn("secondary channel fault", "channel", channelType.String(), "error", err)
	return false
}
