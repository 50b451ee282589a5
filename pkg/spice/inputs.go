package spice

// Keyboard modifier bits, as carried by KeyModifiers and InputsInit.
const (
	ModifierScrollLock uint8 = 1 << iota
	ModifierNumLock
	ModifierCapsLock
)

// KeyDown/KeyUp carry a PC AT scan code (possibly extended, e.g. 0xe0 0x1d).
type KeyDown struct {
	Code uint32
}

type KeyUp struct {
	Code uint32
}

// KeyModifiers is sent both ways: client announces its modifier state on
// connect, server corrects it after processing a key event.
type KeyModifiers struct {
	Modifiers uint8
}

// MouseButton bits, as used by MousePress/MouseRelease/MouseMotion.
const (
	MouseButtonLeft uint8 = 1 << iota
	MouseButtonMiddle
	MouseButtonRight
	MouseButtonUp
	MouseButtonDown
)

// MouseMotion is relative motion, sent in server-mouse mode.
type MouseMotion struct {
	DX, DY       int32
	ButtonsState uint16
}

// MousePosition is absolute motion, sent in client-mouse mode; it must be
// acknowledged every MouseMotionAckBunch events.
type MousePosition struct {
	X, Y         uint32
	ButtonsState uint16
	DisplayID    uint8
}

// MousePress/MouseRelease report a single button transition.
type MousePress struct {
	Button       uint8
	ButtonsState uint16
}

type MouseRelease struct {
	Button       uint8
	ButtonsState uint16
}

// MouseMotionAckBunch is the number of absolute-motion events the client
// must send before the server expects (and the client waits for) an ack.
const MouseMotionAckBunch = 4

// InputsInit announces the server's keyboard modifier state on connect.
type InputsInit struct {
	Modifiers uint8
}
