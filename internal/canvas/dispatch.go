package canvas

import (
	"github.com/breeze-rmm/spicec/internal/cache"
	"github.com/breeze-rmm/spicec/internal/codec"
	"github.com/breeze-rmm/spicec/internal/glz"
	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

// Resolver decodes an inline SpiceImage (after its address has been fixed
// up) into the pixel buffer a Canvas op needs, consulting the pixmap
// cache and GLZ window as the image type requires.
type Resolver struct {
	Pixmaps *cache.Cache
	GLZ     *glz.Window
}

// ResolveImage reads the SpiceImageDescriptor at body[off:] and decodes
// the image it describes, dispatching by ImageType. It handles
// FROM_CACHE/FROM_CACHE_LOSSLESS, JPEG/JPEG_ALPHA, LZ_RGB, QUIC and
// GLZ_RGB; every other type, SURFACE, BITMAP and LZ_PLT included,
// returns a codec error.
func (r *Resolver) ResolveImage(body []byte, off int) (*spice.DecodedImage, error) {
	if off+spice.ImageDescriptorSize > len(body) {
		return nil, spiceerr.Protocol("canvas: image descriptor out of range")
	}
	desc, err := spice.UnmarshalImageDescriptor(body[off : off+spice.ImageDescriptorSize])
	if err != nil {
		return nil, err
	}
	payload := body[off+spice.ImageDescriptorSize:]

	switch desc.Type {
	case spice.ImageFromCache, spice.ImageFromCacheLossless:
		v, err := r.Pixmaps.Get(desc.ID)
		if err != nil {
			return nil, err
		}
		img, ok := v.(*spice.DecodedImage)
		if !ok {
			return nil, spiceerr.Protocol("canvas: cached entry %d is not a decoded image", desc.ID)
		}
		return img, nil

	case spice.ImageJPEG, spice.ImageJPEGAlpha:
		img, err := codec.DecodeJPEG(payload)
		if err != nil {
			return nil, err
		}
		return r.maybeCache(desc, &img)

	case spice.ImageLZRGB:
		img, err := codec.DecodeLZRGB(payload, int(desc.Width), int(desc.Height))
		if err != nil {
			return nil, err
		}
		return r.maybeCache(desc, &img)

	case spice.ImageQUIC:
		img, err := codec.DecodeQUIC(payload, int(desc.Width), int(desc.Height))
		if err != nil {
			return nil, err
		}
		return r.maybeCache(desc, &img)

	case spice.ImageGLZRGB:
		if len(payload) < 8 {
			return nil, spiceerr.Protocol("canvas: glz image payload too short for window_head_id")
		}
		windowHead := uint64(0)
		for i := 0; i < 8; i++ {
			windowHead |= uint64(payload[i]) << (8 * i)
		}
		glzImg, err := r.GLZ.Decode(desc.ID, windowHead, int(desc.Width), int(desc.Height), payload[8:])
		if err != nil {
			return nil, err
		}
		img := &spice.DecodedImage{
			Width: glzImg.Width, Height: glzImg.Height, Stride: glzImg.Stride,
			Format: spice.PixelFormat32BitRGB, Pixels: glzImg.Pixels,
		}
		return r.maybeCache(desc, img)

	default:
		return nil, spiceerr.Codec("canvas: unsupported image type %d", desc.Type)
	}
}

func (r *Resolver) maybeCache(desc spice.ImageDescriptor, img *spice.DecodedImage) (*spice.DecodedImage, error) {
	if desc.Flags&spice.ImageFlagCacheMe != 0 {
		size := len(img.Pixels)
		if err := r.Pixmaps.Put(desc.ID, img, size); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// Dispatch fixes up a draw record's image references against body/base,
// resolves any referenced images, and invokes the matching Canvas
// operation.
func Dispatch(c Canvas, r *Resolver, rec spice.DrawRecord, body []byte, base uint32) error {
	resolve := func(ref spice.ImageRef) (*spice.DecodedImage, error) {
		off, err := FixUp(body, ref.Addr, base)
		if err != nil {
			return nil, err
		}
		return r.ResolveImage(body, off)
	}

	switch rec.Kind {
	case spice.DrawFill:
		return c.Fill(rec.Box, rec.Clip, rec.Fill.Brush, rec.Fill.Rop, nil)

	case spice.DrawCopy:
		img, err := resolve(rec.Copy.Src)
		if err != nil {
			return err
		}
		return c.Copy(rec.Box, rec.Clip, img, rec.Copy.SrcArea, rec.Copy.Rop, nil)

	case spice.DrawOpaque:
		img, err := resolve(rec.Opaque.Src)
		if err != nil {
			return err
		}
		return c.Opaque(rec.Box, rec.Clip, img, rec.Opaque.SrcArea, rec.Opaque.Brush, rec.Opaque.Rop, nil)

	case spice.DrawBlend:
		img, err := resolve(rec.Blend.Src)
		if err != nil {
			return err
		}
		return c.Blend(rec.Box, rec.Clip, img, rec.Blend.SrcArea, nil)

	case spice.DrawTransparent:
		img, err := resolve(rec.Transparent.Src)
		if err != nil {
			return err
		}
		return c.Transparent(rec.Box, rec.Clip, img, rec.Transparent.SrcArea, rec.Transparent.TrueColor)

	case spice.DrawAlphaBlend:
		img, err := resolve(rec.AlphaBlend.Src)
		if err != nil {
			return err
		}
		return c.AlphaBlend(rec.Box, rec.Clip, img, rec.AlphaBlend.SrcArea, rec.AlphaBlend.Alpha)

	case spice.DrawBlackness:
		return c.Blackness(rec.Box, rec.Clip, nil)

	case spice.DrawWhiteness:
		return c.Whiteness(rec.Box, rec.Clip, nil)

	case spice.DrawInvers:
		return c.Invers(rec.Box, rec.Clip, nil)

	case spice.DrawRop3:
		img, err := resolve(rec.Rop3.Src)
		if err != nil {
			return err
		}
		return c.Rop3(rec.Box, rec.Clip, img, rec.Rop3.SrcArea, rec.Rop3.Brush, rec.Rop3.Rop3, nil)

	case spice.DrawText:
		return c.Text(rec.Box, rec.Clip, rec.Text.BackArea, rec.Text.Fore, rec.Text.Back)

	case spice.DrawCopyBits:
		return c.CopyBits(rec.Box, rec.Clip, rec.CopyBits.SrcPos)

	case spice.DrawStroke:
		// Strokes are not drawn through Dispatch: the display channel
		// fixes up the path address itself, reads the points with
		// spice.UnmarshalPath, and calls Canvas.Stroke directly.
		return spiceerr.Codec("canvas: stroke is not dispatched here, call Canvas.Stroke with the decoded path")

	default:
		return spiceerr.Protocol("canvas: unknown draw kind %d", rec.Kind)
	}
}
