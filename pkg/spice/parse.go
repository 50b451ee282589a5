package spice

import "encoding/binary"

// reader is a small sequential cursor over a message body, used by every
// Unmarshal* function in this file to avoid repeating bounds checks.
type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) need(n int) error {
	if r.off+n > len(r.buf) {
		return errShort("message body", len(r.buf)-r.off, n)
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off : r.off+2])
	r.off += 2
	return v, nil
}

func (r *reader) i16() (int16, error) {
	v, err := r.u16()
	return int16(v), err
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *reader) point16() (Point16, error) {
	x, err := r.i16()
	if err != nil {
		return Point16{}, err
	}
	y, err := r.i16()
	if err != nil {
		return Point16{}, err
	}
	return Point16{X: x, Y: y}, nil
}

func (r *reader) rect() (Rect, error) {
	buf, err := r.bytes(RectSize)
	if err != nil {
		return Rect{}, err
	}
	return UnmarshalRect(buf), nil
}

func (r *reader) clip() (Clip, error) {
	t, err := r.u8()
	if err != nil {
		return Clip{}, err
	}
	c := Clip{Type: ClipType(t)}
	if c.Type != ClipRects {
		return c, nil
	}
	n, err := r.u32()
	if err != nil {
		return Clip{}, err
	}
	c.Rects = make([]Rect, n)
	for i := range c.Rects {
		c.Rects[i], err = r.rect()
		if err != nil {
			return Clip{}, err
		}
	}
	return c, nil
}

func (r *reader) brush() (Brush, error) {
	t, err := r.u8()
	if err != nil {
		return Brush{}, err
	}
	b := Brush{Type: BrushType(t)}
	switch b.Type {
	case BrushSolid:
		b.Color, err = r.u32()
	case BrushPattern:
		b.PatternAddr, err = r.u32()
		if err == nil {
			b.PatternOrigin, err = r.point16()
		}
	}
	return b, err
}

func (r *reader) qmask() (QMask, error) {
	flags, err := r.u8()
	if err != nil {
		return QMask{}, err
	}
	origin, err := r.point16()
	if err != nil {
		return QMask{}, err
	}
	addr, err := r.u32()
	if err != nil {
		return QMask{}, err
	}
	return QMask{Present: addr != 0, Flags: flags, Origin: origin, BitmapAddr: addr}, nil
}

// drawHeader parses the common prefix shared by every DISPLAY draw
// message: the target surface, the destination box, and its clip.
func (r *reader) drawHeader() (surfaceID uint32, box Rect, clip Clip, err error) {
	if surfaceID, err = r.u32(); err != nil {
		return
	}
	if box, err = r.rect(); err != nil {
		return
	}
	clip, err = r.clip()
	return
}

func (r *reader) imageRef() (ImageRef, error) {
	addr, err := r.u32()
	return ImageRef{Addr: addr}, err
}

// UnmarshalDrawFill parses SPICE_MSG_DISPLAY_DRAW_FILL.
func UnmarshalDrawFill(body []byte) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	brush, err := r.brush()
	if err != nil {
		return DrawRecord{}, err
	}
	rop, err := r.u8()
	if err != nil {
		return DrawRecord{}, err
	}
	mask, err := r.qmask()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{
		Kind: DrawFill, SurfaceID: sid, Box: box, Clip: clip,
		Fill: &FillData{Brush: brush, Rop: Rop3(rop), Mask: mask},
		Mask: &mask,
	}, nil
}

func (r *reader) copyLikeFields() (src ImageRef, srcArea Rect, rop uint8, scale uint8, mask QMask, err error) {
	if src, err = r.imageRef(); err != nil {
		return
	}
	if srcArea, err = r.rect(); err != nil {
		return
	}
	var ropVal, scaleVal uint8
	if ropVal, err = r.u8(); err != nil {
		return
	}
	if scaleVal, err = r.u8(); err != nil {
		return
	}
	if mask, err = r.qmask(); err != nil {
		return
	}
	return src, srcArea, ropVal, scaleVal, mask, nil
}

// UnmarshalDrawCopy parses SPICE_MSG_DISPLAY_DRAW_COPY.
func UnmarshalDrawCopy(body []byte) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	src, area, rop, scale, mask, err := r.copyLikeFields()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{
		Kind: DrawCopy, SurfaceID: sid, Box: box, Clip: clip,
		Copy: &CopyData{Src: src, SrcArea: area, Rop: Rop3(rop), ScaleMode: ScaleMode(scale), Mask: mask},
		Mask: &mask,
	}, nil
}

// UnmarshalDrawOpaque parses SPICE_MSG_DISPLAY_DRAW_OPAQUE.
func UnmarshalDrawOpaque(body []byte) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	src, area, rop, scale, mask, err := r.copyLikeFields()
	if err != nil {
		return DrawRecord{}, err
	}
	brush, err := r.brush()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{
		Kind: DrawOpaque, SurfaceID: sid, Box: box, Clip: clip,
		Opaque: &OpaqueData{Src: src, SrcArea: area, Brush: brush, Rop: Rop3(rop), ScaleMode: ScaleMode(scale), Mask: mask},
		Mask:   &mask,
	}, nil
}

// UnmarshalDrawBlend parses SPICE_MSG_DISPLAY_DRAW_BLEND, which shares
// SpiceOpaque's layout on the wire.
func UnmarshalDrawBlend(body []byte) (DrawRecord, error) {
	rec, err := UnmarshalDrawOpaque(body)
	if err != nil {
		return DrawRecord{}, err
	}
	rec.Kind = DrawBlend
	rec.Blend = rec.Opaque
	rec.Opaque = nil
	return rec, nil
}

func unmarshalBoxOnly(body []byte, kind DrawKind) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{Kind: kind, SurfaceID: sid, Box: box, Clip: clip}, nil
}

// UnmarshalDrawBlackness, UnmarshalDrawWhiteness, UnmarshalDrawInvers parse
// the three mask-only draw kinds (box + clip + qmask, no brush or image).
func UnmarshalDrawBlackness(body []byte) (DrawRecord, error) { return unmarshalMaskOnly(body, DrawBlackness) }
func UnmarshalDrawWhiteness(body []byte) (DrawRecord, error) { return unmarshalMaskOnly(body, DrawWhiteness) }
func UnmarshalDrawInvers(body []byte) (DrawRecord, error)    { return unmarshalMaskOnly(body, DrawInvers) }

func unmarshalMaskOnly(body []byte, kind DrawKind) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	mask, err := r.qmask()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{Kind: kind, SurfaceID: sid, Box: box, Clip: clip, Mask: &mask}, nil
}

// UnmarshalDrawTransparent parses SPICE_MSG_DISPLAY_DRAW_TRANSPARENT.
func UnmarshalDrawTransparent(body []byte) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	src, err := r.imageRef()
	if err != nil {
		return DrawRecord{}, err
	}
	area, err := r.rect()
	if err != nil {
		return DrawRecord{}, err
	}
	trueColor, err := r.u32()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{
		Kind: DrawTransparent, SurfaceID: sid, Box: box, Clip: clip,
		Transparent: &TransparentData{Src: src, SrcArea: area, TrueColor: trueColor, TrueColorOn: true},
	}, nil
}

// UnmarshalDrawAlphaBlend parses SPICE_MSG_DISPLAY_DRAW_ALPHA_BLEND.
func UnmarshalDrawAlphaBlend(body []byte) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	flags, err := r.u8()
	if err != nil {
		return DrawRecord{}, err
	}
	src, err := r.imageRef()
	if err != nil {
		return DrawRecord{}, err
	}
	area, err := r.rect()
	if err != nil {
		return DrawRecord{}, err
	}
	alpha, err := r.u8()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{
		Kind: DrawAlphaBlend, SurfaceID: sid, Box: box, Clip: clip,
		AlphaBlend: &AlphaBlendData{Src: src, SrcArea: area, AlphaFlags: flags, Alpha: alpha},
	}, nil
}

// UnmarshalDrawRop3 parses SPICE_MSG_DISPLAY_DRAW_ROP3.
func UnmarshalDrawRop3(body []byte) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	src, area, rop3, scale, mask, err := r.copyLikeFields()
	if err != nil {
		return DrawRecord{}, err
	}
	brush, err := r.brush()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{
		Kind: DrawRop3, SurfaceID: sid, Box: box, Clip: clip,
		Rop3: &Rop3Data{Src: src, SrcArea: area, Brush: brush, Rop3: rop3, ScaleMode: ScaleMode(scale), Mask: mask},
		Mask: &mask,
	}, nil
}

// UnmarshalDrawStroke parses SPICE_MSG_DISPLAY_DRAW_STROKE. The path itself
// is left at its server address (PathAddr) for the display channel to fix
// up and decode with UnmarshalPath, since a path's point count is only
// known after fix-up.
func UnmarshalDrawStroke(body []byte) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	pathAddr, err := r.u32()
	if err != nil {
		return DrawRecord{}, err
	}
	brush, err := r.brush()
	if err != nil {
		return DrawRecord{}, err
	}
	rop, err := r.u8()
	if err != nil {
		return DrawRecord{}, err
	}
	flags, err := r.u16()
	if err != nil {
		return DrawRecord{}, err
	}
	styleAddr, err := r.u32()
	if err != nil {
		return DrawRecord{}, err
	}
	startCap, err := r.u8()
	if err != nil {
		return DrawRecord{}, err
	}
	endCap, err := r.u8()
	if err != nil {
		return DrawRecord{}, err
	}
	join, err := r.u8()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{
		Kind: DrawStroke, SurfaceID: sid, Box: box, Clip: clip,
		Stroke: &StrokeData{
			PathAddr: pathAddr, Brush: brush, Rop: Rop3(rop),
			Attributes: StrokeAttributes{Flags: flags, StyleAddr: styleAddr, StartCap: startCap, EndCap: endCap, Join: join},
		},
	}, nil
}

// UnmarshalPath reads a fixed-up SpicePath: a point count followed by that
// many Point16 entries, used once DrawStroke's PathAddr has been resolved.
func UnmarshalPath(body []byte, off int) ([]Point16, error) {
	r := newReader(body)
	r.off = off
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	points := make([]Point16, n)
	for i := range points {
		points[i], err = r.point16()
		if err != nil {
			return nil, err
		}
	}
	return points, nil
}

// UnmarshalDrawText parses SPICE_MSG_DISPLAY_DRAW_TEXT.
func UnmarshalDrawText(body []byte) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	stringAddr, err := r.u32()
	if err != nil {
		return DrawRecord{}, err
	}
	backArea, err := r.rect()
	if err != nil {
		return DrawRecord{}, err
	}
	fore, err := r.brush()
	if err != nil {
		return DrawRecord{}, err
	}
	back, err := r.brush()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{
		Kind: DrawText, SurfaceID: sid, Box: box, Clip: clip,
		Text: &TextData{StringAddr: stringAddr, BackArea: backArea, Fore: fore, Back: back},
	}, nil
}

// UnmarshalDrawCopyBits parses SPICE_MSG_DISPLAY_COPY_BITS.
func UnmarshalDrawCopyBits(body []byte) (DrawRecord, error) {
	r := newReader(body)
	sid, box, clip, err := r.drawHeader()
	if err != nil {
		return DrawRecord{}, err
	}
	srcPos, err := r.point16()
	if err != nil {
		return DrawRecord{}, err
	}
	return DrawRecord{
		Kind: DrawCopyBits, SurfaceID: sid, Box: box, Clip: clip,
		CopyBits: &CopyBitsData{SrcPos: srcPos},
	}, nil
}

// UnmarshalSurfaceCreate parses SPICE_MSG_DISPLAY_SURFACE_CREATE.
func UnmarshalSurfaceCreate(body []byte) (SurfaceCreate, error) {
	r := newReader(body)
	id, err := r.u32()
	if err != nil {
		return SurfaceCreate{}, err
	}
	w, err := r.u32()
	if err != nil {
		return SurfaceCreate{}, err
	}
	h, err := r.u32()
	if err != nil {
		return SurfaceCreate{}, err
	}
	format, err := r.u32()
	if err != nil {
		return SurfaceCreate{}, err
	}
	flags, err := r.u32()
	if err != nil {
		return SurfaceCreate{}, err
	}
	return SurfaceCreate{SurfaceID: id, Width: w, Height: h, Format: SurfaceFormat(format), Flags: flags}, nil
}

// UnmarshalSurfaceDestroy parses SPICE_MSG_DISPLAY_SURFACE_DESTROY.
func UnmarshalSurfaceDestroy(body []byte) (SurfaceDestroy, error) {
	r := newReader(body)
	id, err := r.u32()
	return SurfaceDestroy{SurfaceID: id}, err
}

// UnmarshalStreamCreate parses SPICE_MSG_DISPLAY_STREAM_CREATE.
func UnmarshalStreamCreate(body []byte) (StreamCreate, error) {
	r := newReader(body)
	id, err := r.u32()
	if err != nil {
		return StreamCreate{}, err
	}
	sid, err := r.u32()
	if err != nil {
		return StreamCreate{}, err
	}
	codec, err := r.u8()
	if err != nil {
		return StreamCreate{}, err
	}
	dest, err := r.rect()
	if err != nil {
		return StreamCreate{}, err
	}
	clip, err := r.clip()
	if err != nil {
		return StreamCreate{}, err
	}
	return StreamCreate{StreamID: id, SurfaceID: sid, Codec: VideoCodecType(codec), DestRegion: dest, Clip: clip}, nil
}

// UnmarshalStreamData parses SPICE_MSG_DISPLAY_STREAM_DATA.
func UnmarshalStreamData(body []byte) (StreamData, error) {
	r := newReader(body)
	id, err := r.u32()
	if err != nil {
		return StreamData{}, err
	}
	mmTime, err := r.u32()
	if err != nil {
		return StreamData{}, err
	}
	n, err := r.u32()
	if err != nil {
		return StreamData{}, err
	}
	data, err := r.bytes(int(n))
	if err != nil {
		return StreamData{}, err
	}
	return StreamData{StreamID: id, MultiMediaTime: mmTime, Data: data}, nil
}

// UnmarshalStreamClip parses SPICE_MSG_DISPLAY_STREAM_CLIP.
func UnmarshalStreamClip(body []byte) (StreamClip, error) {
	r := newReader(body)
	id, err := r.u32()
	if err != nil {
		return StreamClip{}, err
	}
	clip, err := r.clip()
	if err != nil {
		return StreamClip{}, err
	}
	return StreamClip{StreamID: id, Clip: clip}, nil
}

// UnmarshalStreamDestroy parses SPICE_MSG_DISPLAY_STREAM_DESTROY.
func UnmarshalStreamDestroy(body []byte) (StreamDestroy, error) {
	r := newReader(body)
	id, err := r.u32()
	return StreamDestroy{StreamID: id}, err
}

// UnmarshalInvalList parses SPICE_MSG_DISPLAY_INVAL_LIST.
func UnmarshalInvalList(body []byte) (InvalList, error) {
	r := newReader(body)
	n, err := r.u32()
	if err != nil {
		return InvalList{}, err
	}
	ids := make([]uint64, n)
	for i := range ids {
		ids[i], err = r.u64()
		if err != nil {
			return InvalList{}, err
		}
	}
	return InvalList{IDs: ids}, nil
}

// UnmarshalMonitorsConfig parses SPICE_MSG_DISPLAY_MONITORS_CONFIG.
func UnmarshalMonitorsConfig(body []byte) (MonitorsConfig, error) {
	r := newReader(body)
	count, err := r.u16()
	if err != nil {
		return MonitorsConfig{}, err
	}
	maxAllowed, err := r.u16()
	if err != nil {
		return MonitorsConfig{}, err
	}
	monitors := make([]Monitor, count)
	for i := range monitors {
		left, err := r.u32()
		if err != nil {
			return MonitorsConfig{}, err
		}
		top, err := r.u32()
		if err != nil {
			return MonitorsConfig{}, err
		}
		width, err := r.u32()
		if err != nil {
			return MonitorsConfig{}, err
		}
		height, err := r.u32()
		if err != nil {
			return MonitorsConfig{}, err
		}
		monitors[i] = Monitor{Left: left, Top: top, Width: width, Height: height}
	}
	return MonitorsConfig{MaxAllowed: int(maxAllowed), Monitors: monitors}, nil
}
