package spice

import "encoding/binary"

// ImageDescriptor is SpiceImageDescriptor: identifies one server-side image
// by id, type, flags, and decoded dimensions.
type ImageDescriptor struct {
	ID     uint64
	Type   ImageType
	Flags  uint8
	Width  uint32
	Height uint32
}

// Descriptor flags.
const (
	ImageFlagCacheMe uint8 = 1 << iota
	ImageFlagHighBitsSet
	ImageFlagCacheReplace
)

const ImageDescriptorSize = 8 + 1 + 1 + 4 + 4

func MarshalImageDescriptor(d ImageDescriptor) []byte {
	buf := make([]byte, ImageDescriptorSize)
	binary.LittleEndian.PutUint64(buf[0:8], d.ID)
	buf[8] = byte(d.Type)
	buf[9] = d.Flags
	binary.LittleEndian.PutUint32(buf[10:14], d.Width)
	binary.LittleEndian.PutUint32(buf[14:18], d.Height)
	return buf
}

func UnmarshalImageDescriptor(buf []byte) (ImageDescriptor, error) {
	if len(buf) < ImageDescriptorSize {
		return ImageDescriptor{}, errShort("image_descriptor", len(buf), ImageDescriptorSize)
	}
	return ImageDescriptor{
		ID:     binary.LittleEndian.Uint64(buf[0:8]),
		Type:   ImageType(buf[8]),
		Flags:  buf[9],
		Width:  binary.LittleEndian.Uint32(buf[10:14]),
		Height: binary.LittleEndian.Uint32(buf[14:18]),
	}, nil
}

// PixelFormat enumerates the local decode formats produced by the codecs in
// internal/codec and consumed by internal/canvas.
type PixelFormat uint8

const (
	PixelFormatInvalid PixelFormat = iota
	PixelFormat1BitPalette
	PixelFormat4BitPalette
	PixelFormat8BitPalette
	PixelFormat16BitRGB555
	PixelFormat16BitRGB565
	PixelFormat24BitRGB
	PixelFormat32BitRGB
	PixelFormat32BitARGB
)

// DecodedImage is the in-memory result of decoding any wire image type: a
// tightly packed buffer of Stride*Height bytes in the given format.
type DecodedImage struct {
	Width, Height int
	Stride        int
	Format        PixelFormat
	Pixels        []byte
	// Palette holds the palette for 1/4/8-bit indexed formats, nil otherwise.
	Palette []uint32
}
