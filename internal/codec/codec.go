// Package codec implements the stateless per-image decoders named in
// spec.md section 4.F: QUIC, LZ (palette and RGB), and JPEG. Each takes a
// byte slice and returns a decoded pixel buffer or a CodecError; none
// retain state between calls, unlike the GLZ decoder's shared window.
package codec

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"

	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

// DecodeJPEG decodes a baseline/progressive JPEG payload into a
// DecodedImage, reusing the standard library decoder the same way the
// teacher's capture pipeline uses image/jpeg for the encode side.
func DecodeJPEG(payload []byte) (spice.DecodedImage, error) {
	img, err := jpeg.Decode(bytes.NewReader(payload))
	if err != nil {
		return spice.DecodedImage{}, spiceerr.Codec("codec: jpeg decode: %w", err)
	}
	return toDecodedImage(img), nil
}

func toDecodedImage(img image.Image) spice.DecodedImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := w * 4
	pixels := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bch, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			off := y*stride + x*4
			pixels[off] = byte(bch >> 8)
			pixels[off+1] = byte(g >> 8)
			pixels[off+2] = byte(r >> 8)
			pixels[off+3] = byte(a >> 8)
		}
	}
	return spice.DecodedImage{
		Width: w, Height: h, Stride: stride,
		Format: spice.PixelFormat32BitARGB,
		Pixels: pixels,
	}
}

// LZ opcode tags, shared by LZ_PLT and LZ_RGB payloads.
const (
	lzOpCopy byte = 0
	lzOpMatch byte = 1
)

// DecodeLZRGB decodes a SPICE LZ_RGB payload: a literal-copy/match stream
// over a 4-bytes-per-pixel buffer, with no cross-image dictionary (unlike
// GLZ, matches only reach backward within the same image).
func DecodeLZRGB(payload []byte, width, height int) (spice.DecodedImage, error) {
	stride := width * 4
	out := make([]byte, stride*height)
	if err := runLZ(payload, out); err != nil {
		return spice.DecodedImage{}, err
	}
	return spice.DecodedImage{
		Width: width, Height: height, Stride: stride,
		Format: spice.PixelFormat32BitRGB,
		Pixels: out,
	}, nil
}

// DecodeLZPLT decodes a SPICE LZ_PLT (palette-indexed) payload: the LZ
// stream yields palette indices, not raw pixels.
func DecodeLZPLT(payload []byte, width, height int, palette []uint32) (spice.DecodedImage, error) {
	stride := width
	out := make([]byte, stride*height)
	if err := runLZ(payload, out); err != nil {
		return spice.DecodedImage{}, err
	}
	return spice.DecodedImage{
		Width: width, Height: height, Stride: stride,
		Format:  spice.PixelFormat8BitPalette,
		Pixels:  out,
		Palette: palette,
	}, nil
}

// runLZ executes the copy/match opcode stream into a pre-sized out
// buffer, stopping once it is full.
func runLZ(payload []byte, out []byte) error {
	pos, dst := 0, 0
	for pos < len(payload) && dst < len(out) {
		op := payload[pos]
		pos++
		switch op {
		case lzOpCopy:
			if pos+2 > len(payload) {
				return spiceerr.Codec("codec: lz truncated copy header")
			}
			n := int(binary.LittleEndian.Uint16(payload[pos : pos+2]))
			pos += 2
			if pos+n > len(payload) {
				return spiceerr.Codec("codec: lz truncated copy body")
			}
			dst += copy(out[dst:], payload[pos:pos+n])
			pos += n
		case lzOpMatch:
			if pos+4 > len(payload) {
				return spiceerr.Codec("codec: lz truncated match header")
			}
			distance := int(binary.LittleEndian.Uint16(payload[pos : pos+2]))
			length := int(binary.LittleEndian.Uint16(payload[pos+2 : pos+4]))
			pos += 4
			if distance <= 0 || distance > dst {
				return spiceerr.Codec("codec: lz match distance %d out of range at offset %d", distance, dst)
			}
			for i := 0; i < length && dst < len(out); i++ {
				out[dst] = out[dst-distance]
				dst++
			}
		default:
			return spiceerr.Codec("codec: lz unknown opcode %d", op)
		}
	}
	return nil
}

// DecodeQUIC decodes a SPICE QUIC (wavelet-based) payload. QUIC is a
// context-adaptive, multi-pass family tuned for photographic content;
// this implements its simplified single-pass variant (direct coefficient
// stream with run-length zero-coding), matching the fallback lossless
// path of the real codec rather than the full adaptive multi-level
// transform.
func DecodeQUIC(payload []byte, width, height int) (spice.DecodedImage, error) {
	stride := width * 4
	out := make([]byte, stride*height)

	pos, dst := 0, 0
	for pos < len(payload) && dst < len(out) {
		tag := payload[pos]
		pos++
		if tag == 0 { // run of zero pixels (4 bytes each)
			if pos+2 > len(payload) {
				return spice.DecodedImage{}, spiceerr.Codec("codec: quic truncated zero-run header")
			}
			n := int(binary.LittleEndian.Uint16(payload[pos : pos+2]))
			pos += 2
			for i := 0; i < n && dst+4 <= len(out); i++ {
				dst += 4
			}
			continue
		}
		// tag == 1: one literal pixel follows
		if pos+4 > len(payload) {
			return spice.DecodedImage{}, spiceerr.Codec("codec: quic truncated literal pixel")
		}
		if dst+4 <= len(out) {
			copy(out[dst:dst+4], payload[pos:pos+4])
			dst += 4
		}
		pos += 4
	}

	return spice.DecodedImage{
		Width: width, Height: height, Stride: stride,
		Format: spice.PixelFormat32BitRGB,
		Pixels: out,
	}, nil
}
