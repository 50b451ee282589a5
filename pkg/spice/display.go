package spice

// SurfaceFormat mirrors the subset of PixelFormat valid for an off-screen
// drawing surface.
type SurfaceFormat uint32

const (
	SurfaceFormatInvalid SurfaceFormat = 0
	SurfaceFormat1BPP    SurfaceFormat = 1
	SurfaceFormat16BPP   SurfaceFormat = 16
	SurfaceFormat32BPP   SurfaceFormat = 32
)

// Surface creation flags.
const (
	SurfaceFlagPrimary uint32 = 1 << iota
)

// SurfaceCreate is SPICE_MSG_DISPLAY_SURFACE_CREATE.
type SurfaceCreate struct {
	SurfaceID uint32
	Width     uint32
	Height    uint32
	Format    SurfaceFormat
	Flags     uint32
}

// SurfaceDestroy is SPICE_MSG_DISPLAY_SURFACE_DESTROY.
type SurfaceDestroy struct {
	SurfaceID uint32
}

// StreamCreate is SPICE_MSG_DISPLAY_STREAM_CREATE: announces a new video
// stream region on a surface, coded with Codec.
type StreamCreate struct {
	StreamID   uint32
	SurfaceID  uint32
	Codec      VideoCodecType
	DestRegion Rect
	Clip       Clip
}

// StreamData is SPICE_MSG_DISPLAY_STREAM_DATA: one coded frame.
type StreamData struct {
	StreamID     uint32
	MultiMediaTime uint32
	Data         []byte
}

// StreamClip is SPICE_MSG_DISPLAY_STREAM_CLIP: updates a stream's clip
// without a new frame.
type StreamClip struct {
	StreamID uint32
	Clip     Clip
}

// StreamDestroy is SPICE_MSG_DISPLAY_STREAM_DESTROY.
type StreamDestroy struct {
	StreamID uint32
}

// Monitor describes one logical monitor region within MonitorsConfig.
type Monitor struct {
	Left, Top          uint32
	Width, Height      uint32
}

// MonitorsConfig is SPICE_MSG_DISPLAY_MONITORS_CONFIG.
type MonitorsConfig struct {
	MaxAllowed int
	Monitors   []Monitor
}

// InvalList is SPICE_MSG_DISPLAY_INVAL_LIST: evicts a set of cached
// pixmaps/palettes by id.
type InvalList struct {
	IDs []uint64
}
