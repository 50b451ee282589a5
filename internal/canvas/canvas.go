package canvas

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

// Canvas is the operation set a draw dispatcher invokes once a draw
// record's addresses have been fixed up and any referenced image has been
// decoded. Multiple back-ends can implement it; Software is the only one
// this client ships, grounded on image/draw the way the teacher's capture
// pipeline uses image.RGBA buffers and rect math.
type Canvas interface {
	Fill(box spice.Rect, clip spice.Clip, brush spice.Brush, rop spice.Rop3, mask *Mask) error
	Copy(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, rop spice.Rop3, mask *Mask) error
	Opaque(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, brush spice.Brush, rop spice.Rop3, mask *Mask) error
	Blend(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, mask *Mask) error
	Transparent(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, trueColor uint32) error
	AlphaBlend(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, alpha uint8) error
	Blackness(box spice.Rect, clip spice.Clip, mask *Mask) error
	Whiteness(box spice.Rect, clip spice.Clip, mask *Mask) error
	Invers(box spice.Rect, clip spice.Clip, mask *Mask) error
	Rop3(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, brush spice.Brush, rop3 uint8, mask *Mask) error
	Stroke(box spice.Rect, clip spice.Clip, points []spice.Point16, brush spice.Brush) error
	Text(box spice.Rect, clip spice.Clip, backArea spice.Rect, fore, back spice.Brush) error
	CopyBits(box spice.Rect, clip spice.Clip, srcPos spice.Point16) error
	PutImage(dest spice.Rect, src *spice.DecodedImage, clip spice.Clip) error
	CopyPixels(region spice.Rect, dest Canvas) error
}

// Mask is a resolved 1-bit mask image applied alongside a draw op.
type Mask struct {
	Origin spice.Point16
	Bits   []byte
	Width  int
	Height int
}

// Software is an image/draw-backed Canvas for one surface.
type Software struct {
	Width, Height int
	img           *image.RGBA
}

// NewSoftware allocates a blank surface of the given dimensions, per
// SPICE_MSG_DISPLAY_SURFACE_CREATE.
func NewSoftware(width, height int) *Software {
	return &Software{
		Width: width, Height: height,
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Image exposes the underlying buffer for presentation.
func (s *Software) Image() *image.RGBA { return s.img }

func toImageRect(r spice.Rect) image.Rectangle {
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom))
}

func clipRect(r image.Rectangle, clip spice.Clip) image.Rectangle {
	if clip.Type != spice.ClipRects || len(clip.Rects) == 0 {
		return r
	}
	var union image.Rectangle
	for i, cr := range clip.Rects {
		ir := toImageRect(cr)
		if i == 0 {
			union = ir
		} else {
			union = union.Union(ir)
		}
	}
	return r.Intersect(union)
}

func (s *Software) bounds() image.Rectangle { return s.img.Bounds() }

func brushColor(b spice.Brush) (color.Color, error) {
	switch b.Type {
	case spice.BrushSolid:
		c := b.Color
		return color.RGBA{
			R: byte(c >> 16), G: byte(c >> 8), B: byte(c), A: 0xff,
		}, nil
	case spice.BrushNone:
		return color.RGBA{}, nil
	default:
		return nil, spiceerr.Codec("canvas: pattern brushes are not supported by the software back-end")
	}
}

func (s *Software) Fill(box spice.Rect, clip spice.Clip, brush spice.Brush, rop spice.Rop3, mask *Mask) error {
	r := clipRect(toImageRect(box).Intersect(s.bounds()), clip)
	if r.Empty() {
		return nil
	}
	c, err := brushColor(brush)
	if err != nil {
		return err
	}
	draw.Draw(s.img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
	return nil
}

func decodedToRGBA(src *spice.DecodedImage) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, src.Width, src.Height))
	copy(img.Pix, src.Pixels)
	return img
}

func (s *Software) Copy(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, rop spice.Rop3, mask *Mask) error {
	if src == nil {
		return spiceerr.Protocol("canvas: copy with nil source image")
	}
	dst := clipRect(toImageRect(box).Intersect(s.bounds()), clip)
	if dst.Empty() {
		return nil
	}
	srcImg := decodedToRGBA(src)
	sp := image.Pt(int(srcArea.Left), int(srcArea.Top))
	draw.Draw(s.img, dst, srcImg, sp, draw.Src)
	return nil
}

func (s *Software) Opaque(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, brush spice.Brush, rop spice.Rop3, mask *Mask) error {
	return s.Copy(box, clip, src, srcArea, rop, mask)
}

func (s *Software) Blend(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, mask *Mask) error {
	if src == nil {
		return spiceerr.Protocol("canvas: blend with nil source image")
	}
	dst := clipRect(toImageRect(box).Intersect(s.bounds()), clip)
	if dst.Empty() {
		return nil
	}
	srcImg := decodedToRGBA(src)
	sp := image.Pt(int(srcArea.Left), int(srcArea.Top))
	draw.Draw(s.img, dst, srcImg, sp, draw.Over)
	return nil
}

func (s *Software) Transparent(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, trueColor uint32) error {
	if src == nil {
		return spiceerr.Protocol("canvas: transparent with nil source image")
	}
	dst := clipRect(toImageRect(box).Intersect(s.bounds()), clip)
	if dst.Empty() {
		return nil
	}
	srcImg := decodedToRGBA(src)
	key := color.RGBA{R: byte(trueColor >> 16), G: byte(trueColor >> 8), B: byte(trueColor), A: 0xff}
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		for x := dst.Min.X; x < dst.Max.X; x++ {
			sx := x - dst.Min.X + int(srcArea.Left)
			sy := y - dst.Min.Y + int(srcArea.Top)
			if sx < 0 || sy < 0 || sx >= srcImg.Bounds().Dx() || sy >= srcImg.Bounds().Dy() {
				continue
			}
			px := srcImg.RGBAAt(sx, sy)
			if px == key {
				continue
			}
			s.img.SetRGBA(x, y, px)
		}
	}
	return nil
}

func (s *Software) AlphaBlend(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, alpha uint8) error {
	if src == nil {
		return spiceerr.Protocol("canvas: alpha_blend with nil source image")
	}
	dst := clipRect(toImageRect(box).Intersect(s.bounds()), clip)
	if dst.Empty() {
		return nil
	}
	srcImg := decodedToRGBA(src)
	mask := image.NewUniform(color.Alpha{A: alpha})
	sp := image.Pt(int(srcArea.Left), int(srcArea.Top))
	draw.DrawMask(s.img, dst, srcImg, sp, mask, image.Point{}, draw.Over)
	return nil
}

func (s *Software) Blackness(box spice.Rect, clip spice.Clip, mask *Mask) error {
	return s.Fill(box, clip, spice.Brush{Type: spice.BrushSolid, Color: 0x000000}, 0, mask)
}

func (s *Software) Whiteness(box spice.Rect, clip spice.Clip, mask *Mask) error {
	return s.Fill(box, clip, spice.Brush{Type: spice.BrushSolid, Color: 0xffffff}, 0, mask)
}

func (s *Software) Invers(box spice.Rect, clip spice.Clip, mask *Mask) error {
	r := clipRect(toImageRect(box).Intersect(s.bounds()), clip)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			px := s.img.RGBAAt(x, y)
			s.img.SetRGBA(x, y, color.RGBA{R: 255 - px.R, G: 255 - px.G, B: 255 - px.B, A: px.A})
		}
	}
	return nil
}

// Rop3 supports only SRCCOPY/DSTINVERT/BLACKNESS/WHITENESS-equivalent
// codes explicitly; arbitrary ternary raster ops are not reproducible
// with image/draw and fall back to a plain copy, matching the software
// back-end's documented limits.
func (s *Software) Rop3(box spice.Rect, clip spice.Clip, src *spice.DecodedImage, srcArea spice.Rect, brush spice.Brush, rop3 uint8, mask *Mask) error {
	switch rop3 {
	case 0x00:
		return s.Blackness(box, clip, mask)
	case 0xff:
		return s.Whiteness(box, clip, mask)
	case 0x55:
		return s.Invers(box, clip, mask)
	default:
		return s.Copy(box, clip, src, srcArea, 0, mask)
	}
}

// Stroke draws straight segments between consecutive points with brush's
// solid color; the software back-end does not reproduce dashed/joined
// line attributes, only the segment geometry.
func (s *Software) Stroke(box spice.Rect, clip spice.Clip, points []spice.Point16, brush spice.Brush) error {
	c, err := brushColor(brush)
	if err != nil {
		return err
	}
	rgba, _ := c.(color.RGBA)
	bounds := clipRect(toImageRect(box).Intersect(s.bounds()), clip)
	for i := 1; i < len(points); i++ {
		drawLine(s.img, points[i-1], points[i], rgba, bounds)
	}
	return nil
}

func drawLine(img *image.RGBA, a, b spice.Point16, c color.RGBA, bounds image.Rectangle) {
	x0, y0, x1, y1 := int(a.X), int(a.Y), int(b.X), int(b.Y)
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(bounds) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	if n > 0 {
		return 1
	}
	return 0
}

// Text fills the glyph-string's back area with the back brush and the
// bounding box with the fore brush; full glyph rasterization is outside
// the software back-end's contract (spec.md leaves font rendering to the
// platform back-end).
func (s *Software) Text(box spice.Rect, clip spice.Clip, backArea spice.Rect, fore, back spice.Brush) error {
	if !backArea.Empty() {
		if err := s.Fill(backArea, clip, back, 0, nil); err != nil {
			return err
		}
	}
	return s.Fill(box, clip, fore, 0, nil)
}

func (s *Software) CopyBits(box spice.Rect, clip spice.Clip, srcPos spice.Point16) error {
	dst := clipRect(toImageRect(box).Intersect(s.bounds()), clip)
	if dst.Empty() {
		return nil
	}
	sp := image.Pt(int(srcPos.X), int(srcPos.Y))
	draw.Draw(s.img, dst, s.img, sp, draw.Src)
	return nil
}

func (s *Software) PutImage(dest spice.Rect, src *spice.DecodedImage, clip spice.Clip) error {
	if src == nil {
		return spiceerr.Protocol("canvas: put_image with nil source")
	}
	dst := clipRect(toImageRect(dest).Intersect(s.bounds()), clip)
	if dst.Empty() {
		return nil
	}
	srcImg := decodedToRGBA(src)
	draw.Draw(s.img, dst, srcImg, image.Point{}, draw.Src)
	return nil
}

func (s *Software) CopyPixels(region spice.Rect, dest Canvas) error {
	other, ok := dest.(*Software)
	if !ok {
		return spiceerr.Codec("canvas: copy_pixels requires two software canvases")
	}
	r := toImageRect(region).Intersect(s.bounds())
	draw.Draw(other.img, r, s.img, r.Min, draw.Src)
	return nil
}
