package spice

import "encoding/binary"

// cursorHeaderAndData reads a CursorHeader followed by its raw pixel/mask
// payload, which runs to the end of the body (its length is implied by
// the header's type/width/height, not separately length-prefixed).
func cursorHeaderAndData(body []byte) (CursorHeader, []byte, error) {
	if len(body) < CursorHeaderSize {
		return CursorHeader{}, nil, errShort("cursor_header", len(body), CursorHeaderSize)
	}
	hdr, err := UnmarshalCursorHeader(body)
	if err != nil {
		return CursorHeader{}, nil, err
	}
	return hdr, body[CursorHeaderSize:], nil
}

// UnmarshalCursorSet parses SPICE_MSG_CURSOR_SET.
func UnmarshalCursorSet(body []byte) (CursorSet, error) {
	r := newReader(body)
	pos, err := r.point16()
	if err != nil {
		return CursorSet{}, err
	}
	flags, err := r.u8()
	if err != nil {
		return CursorSet{}, err
	}
	hdr, data, err := cursorHeaderAndData(body[r.off:])
	if err != nil {
		return CursorSet{}, err
	}
	return CursorSet{Position: pos, VisFlags: flags, Shape: hdr, Data: data}, nil
}

// UnmarshalCursorMove parses SPICE_MSG_CURSOR_MOVE.
func UnmarshalCursorMove(body []byte) (CursorMove, error) {
	r := newReader(body)
	pos, err := r.point16()
	return CursorMove{Position: pos}, err
}

// UnmarshalCursorTrail parses SPICE_MSG_CURSOR_TRAIL.
func UnmarshalCursorTrail(body []byte) (CursorTrail, error) {
	r := newReader(body)
	length, err := r.u16()
	if err != nil {
		return CursorTrail{}, err
	}
	freq, err := r.u16()
	return CursorTrail{Length: length, Frequency: freq}, err
}

// UnmarshalCursorInvalOne parses SPICE_MSG_CURSOR_INVAL_ONE.
func UnmarshalCursorInvalOne(body []byte) (CursorInvalOne, error) {
	r := newReader(body)
	id, err := r.u64()
	return CursorInvalOne{UniqueID: id}, err
}

// UnmarshalCursorInit parses SPICE_MSG_CURSOR_INIT.
func UnmarshalCursorInit(body []byte) (CursorInit, error) {
	r := newReader(body)
	pos, err := r.point16()
	if err != nil {
		return CursorInit{}, err
	}
	trailLen, err := r.u16()
	if err != nil {
		return CursorInit{}, err
	}
	trailFreq, err := r.u16()
	if err != nil {
		return CursorInit{}, err
	}
	visFlags, err := r.u8()
	if err != nil {
		return CursorInit{}, err
	}
	hdr, data, err := cursorHeaderAndData(body[r.off:])
	if err != nil {
		return CursorInit{}, err
	}
	return CursorInit{
		Position:  pos,
		TrailLen:  trailLen,
		TrailFreq: trailFreq,
		VisFlags:  visFlags,
		Shape:     hdr,
		Data:      data,
	}, nil
}

// MarshalCursorHeader is the wire encoding matching UnmarshalCursorHeader,
// used only by tests to build synthetic server frames.
func MarshalCursorHeader(h CursorHeader) []byte {
	buf := make([]byte, CursorHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.UniqueID)
	buf[8] = byte(h.Type)
	binary.LittleEndian.PutUint16(buf[9:11], h.Width)
	binary.LittleEndian.PutUint16(buf[11:13], h.Height)
	binary.LittleEndian.PutUint16(buf[13:15], uint16(h.HotSpot.X))
	binary.LittleEndian.PutUint16(buf[15:17], uint16(h.HotSpot.Y))
	return buf
}
