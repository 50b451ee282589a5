// Package spice holds the wire-protocol constants and message types shared
// across the channel, display, cursor, inputs, and main-channel packages.
// All integer fields on the wire are little-endian; layouts here mirror
// spec section 6 bit-for-bit.
package spice

// LinkMagic is the four-byte magic that opens every channel's link handshake.
const LinkMagic = "REDQ"

// Protocol version negotiated at link time.
const (
	VersionMajor = 2
	VersionMinor = 2
)

// ChannelType identifies which logical channel a connection carries.
type ChannelType uint8

const (
	ChannelMain     ChannelType = 1
	ChannelDisplay  ChannelType = 2
	ChannelInputs   ChannelType = 3
	ChannelCursor   ChannelType = 4
	ChannelPlayback ChannelType = 5
	ChannelRecord   ChannelType = 6
	ChannelTunnel   ChannelType = 7
)

func (c ChannelType) String() string {
	switch c {
	case ChannelMain:
		return "main"
	case ChannelDisplay:
		return "display"
	case ChannelInputs:
		return "inputs"
	case ChannelCursor:
		return "cursor"
	case ChannelPlayback:
		return "playback"
	case ChannelRecord:
		return "record"
	case ChannelTunnel:
		return "tunnel"
	default:
		return "unknown"
	}
}

// LinkErr is the SpiceLinkReply error code.
type LinkErr uint32

const (
	LinkErrOK                  LinkErr = 0
	LinkErrError               LinkErr = 1
	LinkErrInvalidMagic        LinkErr = 2
	LinkErrInvalidData         LinkErr = 3
	LinkErrVersionMismatch     LinkErr = 4
	LinkErrNeedSecured         LinkErr = 5
	LinkErrNeedUnsecured       LinkErr = 6
	LinkErrPermissionDenied    LinkErr = 7
	LinkErrBadConnectionID     LinkErr = 8
	LinkErrChannelNotAvailable LinkErr = 9
)

// Common capability bits (SpiceCommonCap), shared by every channel.
const (
	CapAuthSelection uint32 = 1 << iota
	CapAuthSpice
	CapAuthSASL
	CapMiniHeader
)

// Display-channel capability bits (SpiceDisplayCap).
const (
	CapDisplaySizedStream uint32 = 1 << iota
	CapDisplayMonitorsConfig
	CapDisplayComposite
	CapDisplayA8Surface
	CapDisplayStreamReport
	CapDisplayPreferredCompression
	CapDisplayGLScanout
	CapDisplayMultiCodec
	CapDisplayCodecMJPEG
	CapDisplayCodecVP8
	CapDisplayCodecH264
	CapDisplayPreferredVideoCodecType
)

// ImageType identifies how SpiceImageDescriptor.data is encoded.
type ImageType uint8

const (
	ImageBitmap    ImageType = 0
	ImageQUIC      ImageType = 1
	ImageReserved  ImageType = 2
	ImageLZPLT     ImageType = 100
	ImageLZRGB     ImageType = 101
	ImageGLZRGB    ImageType = 102
	ImageFromCache ImageType = 103
	ImageSurface   ImageType = 104
	ImageJPEG      ImageType = 105
	ImageFromCacheLossless ImageType = 106
	ImageZlibGLZRGB        ImageType = 107
	ImageJPEGAlpha         ImageType = 108
)

// MaxMessageSize bounds a single frame's declared body size. The wire framer
// (internal/wire) rejects anything larger as a ProtocolError.
const MaxMessageSize = 64 * 1024 * 1024

// AckWindow is the default number of payload messages a channel accepts
// between ACKs, per spec 4.B.
const AckWindow = 20

// VideoCodecType enumerates the stream codecs named in spec 4.I.
type VideoCodecType uint8

const (
	VideoCodecMJPEG VideoCodecType = 1
	VideoCodecVP8   VideoCodecType = 2
	VideoCodecH264  VideoCodecType = 3
)
