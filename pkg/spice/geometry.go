package spice

import "encoding/binary"

// Point16 is a 16-bit signed point, as used in SPICE draw records.
type Point16 struct {
	X, Y int16
}

// Rect is an axis-aligned rectangle with exclusive right/bottom edges,
// matching SpiceRect (top, left, bottom, right).
type Rect struct {
	Top, Left, Bottom, Right int32
}

func (r Rect) Width() int32  { return r.Right - r.Left }
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// Empty reports whether the rect has zero or negative area.
func (r Rect) Empty() bool { return r.Right <= r.Left || r.Bottom <= r.Top }

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.Left < o.Right && o.Left < r.Right && r.Top < o.Bottom && o.Top < r.Bottom
}

// Within reports whether r lies entirely inside bounds [0,0,w,h), per the
// surface bounding-box invariant in spec section 8.
func (r Rect) Within(w, h int32) bool {
	return r.Left >= 0 && r.Top >= 0 && r.Right <= w && r.Bottom <= h && !r.Empty()
}

const RectSize = 16

func MarshalRect(r Rect) []byte {
	buf := make([]byte, RectSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Top))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Left))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.Bottom))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.Right))
	return buf
}

func UnmarshalRect(buf []byte) Rect {
	return Rect{
		Top:    int32(binary.LittleEndian.Uint32(buf[0:4])),
		Left:   int32(binary.LittleEndian.Uint32(buf[4:8])),
		Bottom: int32(binary.LittleEndian.Uint32(buf[8:12])),
		Right:  int32(binary.LittleEndian.Uint32(buf[12:16])),
	}
}

// ClipType selects how a draw record's clip field should be interpreted.
type ClipType uint8

const (
	ClipNone ClipType = iota
	ClipRects
)

// Clip is a draw record's optional clip: either unclipped, or a list of
// rectangles (the union of which bounds the drawable area).
type Clip struct {
	Type  ClipType
	Rects []Rect
}
