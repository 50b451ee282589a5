package spice

// DrawKind tags the union of draw records described in spec section 3
// "Draw record" and dispatched in spec section 4.G.
type DrawKind uint8

const (
	DrawFill DrawKind = iota
	DrawOpaque
	DrawCopy
	DrawBlend
	DrawTransparent
	DrawAlphaBlend
	DrawBlackness
	DrawWhiteness
	DrawInvers
	DrawRop3
	DrawStroke
	DrawText
	DrawCopyBits
)

// BrushType selects how Brush.Color/Pattern should be interpreted.
type BrushType uint8

const (
	BrushNone BrushType = iota
	BrushSolid
	BrushPattern
)

// Brush is SpiceBrush: either no brush, a solid ARGB color, or a pattern
// image referenced by server address plus an origin offset.
type Brush struct {
	Type         BrushType
	Color        uint32
	PatternAddr  uint32 // server address of the pattern SpiceImage, fixed up by canvas
	PatternOrigin Point16
}

// QMask is SpiceQMask: an optional 1-bit mask image applied to a draw op.
type QMask struct {
	Present  bool
	Flags    uint8
	Origin   Point16
	BitmapAddr uint32 // server address of the mask SpiceImage, fixed up by canvas
}

// ImageRef is a server-address reference to a SpiceImage inline in the
// message body, before fix-up.
type ImageRef struct {
	Addr uint32
}

// ScaleMode for copy/opaque operations.
type ScaleMode uint8

const (
	ScaleInterpolate ScaleMode = iota
	ScaleNearest
)

// Rop3 selects the raster operation used by copy/opaque/rop3 draw kinds.
type Rop3 uint8

// FillData is SpiceFill: brush + rop + optional mask, no source image.
type FillData struct {
	Brush Brush
	Rop   Rop3
	Mask  QMask
}

// OpaqueData is SpiceOpaque: copies src_area of an image through a brush.
type OpaqueData struct {
	Src       ImageRef
	SrcArea   Rect
	Brush     Brush
	Rop       Rop3
	ScaleMode ScaleMode
	Mask      QMask
}

// CopyData is SpiceCopy: copies src_area of an image directly.
type CopyData struct {
	Src       ImageRef
	SrcArea   Rect
	Rop       Rop3
	ScaleMode ScaleMode
	Mask      QMask
}

// TransparentData is SpiceTransparent: copies an image, treating one color
// as transparent.
type TransparentData struct {
	Src         ImageRef
	SrcArea     Rect
	TrueColor   uint32
	TrueColorOn bool
}

// AlphaBlendData is SpiceAlphaBlend: alpha-composites an image with a
// uniform blend factor.
type AlphaBlendData struct {
	Src       ImageRef
	SrcArea   Rect
	AlphaFlags uint8
	Alpha      uint8
}

// BlendData reuses OpaqueData's shape (SpiceBlend == SpiceOpaque layout).
type BlendData = OpaqueData

// Rop3Data is SpiceRop3: a three-operand raster op against brush + source.
type Rop3Data struct {
	Src       ImageRef
	SrcArea   Rect
	Brush     Brush
	Rop3      uint8
	ScaleMode ScaleMode
	Mask      QMask
}

// StrokeData is SpiceStroke: a path of line/curve segments with a brush.
type StrokeData struct {
	PathAddr   uint32
	Brush      Brush
	Rop        Rop3
	Attributes StrokeAttributes
}

// StrokeAttributes is SpiceLineAttr.
type StrokeAttributes struct {
	Flags    uint16
	StyleAddr uint32
	StartCap uint8
	EndCap   uint8
	Join     uint8
}

// TextData is SpiceText: a glyph-string draw plus fore/back brushes.
type TextData struct {
	StringAddr uint32
	BackArea   Rect
	Fore       Brush
	Back       Brush
}

// CopyBitsData is SpiceCopyBits: copies a region from elsewhere on the same
// surface (a blit, not a decode).
type CopyBitsData struct {
	SrcPos Point16
}

// DrawRecord is the tagged union described in spec section 3. Exactly one
// of the optional payload fields is populated, selected by Kind; this
// mirrors the "capability sets over sum types" guidance for language
// constructs without a native tagged union.
type DrawRecord struct {
	Kind      DrawKind
	SurfaceID uint32
	Box       Rect
	Clip      Clip

	Fill        *FillData
	Opaque      *OpaqueData
	Copy        *CopyData
	Blend       *BlendData
	Transparent *TransparentData
	AlphaBlend  *AlphaBlendData
	Rop3        *Rop3Data
	Stroke      *StrokeData
	Text        *TextData
	CopyBits    *CopyBitsData
	// Mask alone is used by Blackness/Whiteness/Invers, which carry no
	// other payload.
	Mask *QMask
}
