package spice

import "encoding/binary"

// Marshal encodes SPICE_MSGC_INPUTS_KEY_DOWN.
func (k KeyDown) Marshal() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, k.Code)
	return buf
}

// Marshal encodes SPICE_MSGC_INPUTS_KEY_UP.
func (k KeyUp) Marshal() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, k.Code)
	return buf
}

// Marshal encodes SPICE_MSGC_INPUTS_KEY_MODIFIERS / SPICE_MSG_INPUTS_KEY_MODIFIERS.
func (k KeyModifiers) Marshal() []byte {
	return []byte{k.Modifiers}
}

// UnmarshalKeyModifiers parses SPICE_MSG_INPUTS_KEY_MODIFIERS.
func UnmarshalKeyModifiers(body []byte) (KeyModifiers, error) {
	r := newReader(body)
	m, err := r.u8()
	return KeyModifiers{Modifiers: m}, err
}

// Marshal encodes SPICE_MSGC_INPUTS_MOUSE_MOTION.
func (m MouseMotion) Marshal() []byte {
	buf := make([]byte, 10)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.DX))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.DY))
	binary.LittleEndian.PutUint16(buf[8:10], m.ButtonsState)
	return buf
}

// Marshal encodes SPICE_MSGC_INPUTS_MOUSE_POSITION.
func (m MousePosition) Marshal() []byte {
	buf := make([]byte, 11)
	binary.LittleEndian.PutUint32(buf[0:4], m.X)
	binary.LittleEndian.PutUint32(buf[4:8], m.Y)
	binary.LittleEndian.PutUint16(buf[8:10], m.ButtonsState)
	buf[10] = m.DisplayID
	return buf
}

// Marshal encodes SPICE_MSGC_INPUTS_MOUSE_PRESS.
func (m MousePress) Marshal() []byte {
	buf := make([]byte, 3)
	buf[0] = m.Button
	binary.LittleEndian.PutUint16(buf[1:3], m.ButtonsState)
	return buf
}

// Marshal encodes SPICE_MSGC_INPUTS_MOUSE_RELEASE.
func (m MouseRelease) Marshal() []byte {
	buf := make([]byte, 3)
	buf[0] = m.Button
	binary.LittleEndian.PutUint16(buf[1:3], m.ButtonsState)
	return buf
}

// UnmarshalInputsInit parses SPICE_MSG_INPUTS_INIT.
func UnmarshalInputsInit(body []byte) (InputsInit, error) {
	r := newReader(body)
	m, err := r.u8()
	return InputsInit{Modifiers: m}, err
}

// UnmarshalMouseMotionAck is a no-op parse of SPICE_MSG_INPUTS_MOUSE_MOTION_ACK,
// which carries no body.
func UnmarshalMouseMotionAck(body []byte) error { return nil }
