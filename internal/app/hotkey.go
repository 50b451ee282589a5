package app

import (
	"fmt"
	"strings"
)

// Command identifies a user-facing action the hotkey engine or menu can
// dispatch, named by what it does rather than by key combination.
type Command int

const (
	CommandToggleFullScreen Command = iota
	CommandReleaseCursor
	CommandSendCtrlAltDel
	CommandSendCtrlAltEnd
)

func (c Command) String() string {
	switch c {
	case CommandToggleFullScreen:
		return "toggle-fullscreen"
	case CommandReleaseCursor:
		return "release-cursor"
	case CommandSendCtrlAltDel:
		return "send-ctrl-alt-del"
	case CommandSendCtrlAltEnd:
		return "send-ctrl-alt-end"
	default:
		return "unknown"
	}
}

// KeyChoice is one slot in a hotkey's key set: either its Main scan code
// or its Alternate (e.g. left vs. right Ctrl) satisfies the slot.
type KeyChoice struct {
	Main      uint32
	Alternate uint32
}

func (k KeyChoice) matches(code uint32) bool {
	return code == k.Main || (k.Alternate != 0 && code == k.Alternate)
}

// satisfied reports whether some currently-pressed key matches this slot.
func (k KeyChoice) satisfied(pressed map[uint32]bool) bool {
	for code := range pressed {
		if k.matches(code) {
			return true
		}
	}
	return false
}

// HotKey is a command bound to a set of key slots that must ALL be
// simultaneously pressed, per spec.md section 4.M.
type HotKey struct {
	Command Command
	Keys    []KeyChoice
}

// allPressed reports whether every slot of h has a match in pressed.
func (h HotKey) allPressed(pressed map[uint32]bool) bool {
	for _, k := range h.Keys {
		if !k.satisfied(pressed) {
			return false
		}
	}
	return len(h.Keys) > 0
}

// DefaultHotKeys mirrors the reference command set named in spec.md
// section 4.M: toggle-fullscreen, release-cursor, send-C-A-D, send-C-A-End.
func DefaultHotKeys() []HotKey {
	return []HotKey{
		{Command: CommandToggleFullScreen, Keys: []KeyChoice{{Main: ScanCodeShift, Alternate: ScanCodeShiftRight}, {Main: ScanCodeF11}}},
		{Command: CommandReleaseCursor, Keys: []KeyChoice{{Main: ScanCodeShift, Alternate: ScanCodeShiftRight}, {Main: ScanCodeF12}}},
		{Command: CommandSendCtrlAltDel, Keys: []KeyChoice{{Main: ScanCodeCtrl, Alternate: ScanCodeCtrlRight}, {Main: ScanCodeAlt, Alternate: ScanCodeAltRight}, {Main: ScanCodeDelete}}},
		{Command: CommandSendCtrlAltEnd, Keys: []KeyChoice{{Main: ScanCodeCtrl, Alternate: ScanCodeCtrlRight}, {Main: ScanCodeAlt, Alternate: ScanCodeAltRight}, {Main: ScanCodeEnd}}},
	}
}

func commandByName(name string) (Command, bool) {
	switch name {
	case "toggle-fullscreen":
		return CommandToggleFullScreen, true
	case "release-cursor":
		return CommandReleaseCursor, true
	case "send-ctrl-alt-del":
		return CommandSendCtrlAltDel, true
	case "send-ctrl-alt-end":
		return CommandSendCtrlAltEnd, true
	default:
		return 0, false
	}
}

// ParseHotKeys parses a controller `set_hotkeys` payload of the form
// `command=Key+Key;command=Key+Key`, e.g.
// "toggle-fullscreen=Shift+F11;release-cursor=Shift+F12", per spec.md
// section 4.M's reference hotkey notation. Unknown key or command names
// are rejected rather than silently dropped, since a malformed override
// would otherwise leave a binding permanently unreachable.
func ParseHotKeys(spec string) ([]HotKey, error) {
	var table []HotKey
	for _, binding := range strings.Split(spec, ";") {
		binding = strings.TrimSpace(binding)
		if binding == "" {
			continue
		}
		parts := strings.SplitN(binding, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("app: malformed hotkey binding %q", binding)
		}
		cmd, ok := commandByName(strings.TrimSpace(parts[0]))
		if !ok {
			return nil, fmt.Errorf("app: unknown hotkey command %q", parts[0])
		}

		var keys []KeyChoice
		for _, keyName := range strings.Split(parts[1], "+") {
			code, ok := namedScanCodes[strings.ToLower(strings.TrimSpace(keyName))]
			if !ok {
				return nil, fmt.Errorf("app: unknown key name %q", keyName)
			}
			keys = append(keys, KeyChoice{Main: code})
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("app: hotkey binding %q names no keys", binding)
		}
		table = append(table, HotKey{Command: cmd, Keys: keys})
	}
	return table, nil
}

// hotkeyEngine tracks which hotkeys are currently satisfied so a command
// fires exactly once per press-all-keys transition rather than once per
// matching key_down while the combination is held.
type hotkeyEngine struct {
	table   []HotKey
	matched []bool
}

func newHotkeyEngine(table []HotKey) *hotkeyEngine {
	return &hotkeyEngine{table: table, matched: make([]bool, len(table))}
}

// onKeyDown updates match state after a key_down has been folded into
// pressed, and returns the command to fire and true if this specific
// key_down newly completed a binding (and so should be swallowed).
func (e *hotkeyEngine) onKeyDown(pressed map[uint32]bool) (Command, bool) {
	for i, h := range e.table {
		now := h.allPressed(pressed)
		if now && !e.matched[i] {
			e.matched[i] = true
			return h.Command, true
		}
		e.matched[i] = now
	}
	return 0, false
}

// onKeyUp recomputes match state after a key_up (releasing a key can
// never newly satisfy a binding, only break one).
func (e *hotkeyEngine) onKeyUp(pressed map[uint32]bool) {
	for i, h := range e.table {
		e.matched[i] = h.allPressed(pressed)
	}
}
