// Package video implements the per-stream video engine described in
// spec.md section 4.I: a bounded ring of compressed frames per stream,
// paced against a display-channel update-mark so at most one decoded
// frame is ever in flight, plus the bandwidth-adaptive codec heuristic
// that spec.md names as a trigger but leaves the controller unspecified.
package video

import (
	"sync"
	"time"

	"github.com/breeze-rmm/spicec/internal/canvas"
	"github.com/breeze-rmm/spicec/internal/codec"
	"github.com/breeze-rmm/spicec/internal/eventloop"
	"github.com/breeze-rmm/spicec/internal/logging"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

var log = logging.L("video")

// MaxFrames bounds the per-stream ring, per spec.md section 4.I.
const MaxFrames = 30

// Timing tolerances for frame presentation, in milliseconds relative to
// the stream's multi-media clock.
const (
	maxUnderMS = -15 // frames older than this are dropped as dead
	maxOverMS  = 15   // frames within this window of "now" are due immediately
)

// mmDiff returns a-b for two mm-time values as a wrap-aware signed
// difference (int32(a-b)), so ordering stays correct when the uint32
// millisecond clock wraps after about 49 days.
func mmDiff(a, b uint32) int64 { return int64(int32(a - b)) }

type frame struct {
	mmTime  uint32
	codec   spice.VideoCodecType
	payload []byte
}

// Clock abstracts the session's shared multi-media time, advanced by
// MSG_MAIN_MULTI_MEDIA_TIME and ping round trips.
type Clock interface {
	Now() uint32
}

// Stream is one SPICE video stream: a ring of compressed frames decoded
// and presented in multi-media-time order, with at most one frame
// in flight behind an outstanding display update-mark.
type Stream struct {
	mu sync.Mutex

	id         uint32
	destRegion spice.Rect
	clip       spice.Clip
	codecType  spice.VideoCodecType

	ring        [MaxFrames]frame
	head        int // next write slot
	tail        int // next read slot
	count       int
	killCounter int

	pendingMark    uint64
	markPending    bool
	clock          Clock
	loop           *eventloop.Loop
	target         canvas.Canvas
	resolver       *canvas.Resolver
	invalidate     func(surfaceID uint32, box spice.Rect, urgent bool) uint64
	surfaceID      uint32
	timerScheduled bool
}

// NewStream allocates an empty stream for one STREAM_CREATE message.
func NewStream(id uint32, surfaceID uint32, codecType spice.VideoCodecType, destRegion spice.Rect, clip spice.Clip,
	target canvas.Canvas, resolver *canvas.Resolver, clock Clock, loop *eventloop.Loop,
	invalidate func(surfaceID uint32, box spice.Rect, urgent bool) uint64,
) *Stream {
	return &Stream{
		id: id, surfaceID: surfaceID, codecType: codecType, destRegion: destRegion, clip: clip,
		target: target, resolver: resolver, clock: clock, loop: loop, invalidate: invalidate,
	}
}

// SetClip updates the stream's clip region without a new frame, per
// STREAM_CLIP.
func (s *Stream) SetClip(clip spice.Clip) {
	s.mu.Lock()
	s.clip = clip
	s.mu.Unlock()
}

// Push accepts one compressed frame from STREAM_DATA.
func (s *Stream) Push(mmTime uint32, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maintenanceLocked()

	if s.count == MaxFrames {
		s.dropOneFrameLocked()
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.ring[s.head] = frame{mmTime: mmTime, codec: s.codecType, payload: cp}
	s.head = (s.head + 1) % MaxFrames
	s.count++

	s.maintenanceLocked()
}

// dropOneFrameLocked implements spec.md's victim-selection rule: pick the
// frame at head - (kill_counter % (MAX-2)) - 2, discard it, and shift
// subsequent frames down by one slot, preserving the newest and oldest
// entries. Must be called with s.mu held.
func (s *Stream) dropOneFrameLocked() {
	victimOffset := s.killCounter%(MaxFrames-2) + 2
	s.killCounter++

	victim := (s.head - victimOffset + 2*MaxFrames) % MaxFrames

	// Shift every slot between victim and head-1 down by one, overwriting
	// the victim and closing the gap while keeping ring order intact.
	for i := victim; i != (s.head-1+MaxFrames)%MaxFrames; i = (i + 1) % MaxFrames {
		next := (i + 1) % MaxFrames
		s.ring[i] = s.ring[next]
	}
	s.head = (s.head - 1 + MaxFrames) % MaxFrames
	s.count--
	if s.count < 0 {
		s.count = 0
	}
}

// maintenanceLocked removes dead frames from the tail, then, if no
// display mark is pending, decodes and presents the frame at tail. Must
// be called with s.mu held.
func (s *Stream) maintenanceLocked() {
	if s.clock == nil {
		return
	}
	now := s.clock.Now()

	for s.count > 0 {
		f := s.ring[s.tail]
		if mmDiff(f.mmTime, now) >= maxUnderMS {
			break
		}
		s.advanceTailLocked()
	}

	if s.markPending || s.count == 0 {
		return
	}

	f := s.ring[s.tail]
	delta := mmDiff(f.mmTime, now)
	if delta > maxOverMS {
		s.scheduleTimerLocked(f.mmTime)
		return
	}

	s.presentLocked(f, delta >= -maxOverMS)
}

func (s *Stream) advanceTailLocked() {
	s.tail = (s.tail + 1) % MaxFrames
	s.count--
}

func (s *Stream) presentLocked(f frame, urgent bool) {
	s.advanceTailLocked()

	img, err := s.decode(f)
	if err != nil {
		log.Warn("video frame decode failed", "stream", s.id, "error", err)
		return
	}
	if err := s.target.PutImage(s.destRegion, img, s.clip); err != nil {
		log.Warn("video frame present failed", "stream", s.id, "error", err)
		return
	}
	if s.invalidate != nil {
		mark := s.invalidate(s.surfaceID, s.destRegion, urgent)
		s.pendingMark = mark
		s.markPending = true
	}
}

func (s *Stream) decode(f frame) (*spice.DecodedImage, error) {
	w, h := int(s.destRegion.Width()), int(s.destRegion.Height())
	switch f.codec {
	case spice.VideoCodecMJPEG:
		img, err := codec.DecodeJPEG(f.payload)
		return &img, err
	default:
		img, err := codec.DecodeQUIC(f.payload, w, h)
		return &img, err
	}
}

func (s *Stream) scheduleTimerLocked(dueMMTime uint32) {
	if s.loop == nil || s.timerScheduled {
		return
	}
	s.timerScheduled = true
	delay := time.Duration(mmDiff(dueMMTime, s.clock.Now())) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	s.loop.AddTimer(time.Now().Add(delay), func() {
		s.mu.Lock()
		s.timerScheduled = false
		s.maintenanceLocked()
		s.mu.Unlock()
	})
}

// OnUpdateMark is called when the display compositor acknowledges an
// UPDATE_MARK; once ackMark reaches the mark this stream is waiting on,
// the next queued frame is released for decode.
func (s *Stream) OnUpdateMark(ackMark uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.markPending || ackMark < s.pendingMark {
		return
	}
	s.markPending = false
	s.maintenanceLocked()
}

// OnTimer re-checks whether the frame at tail has become due.
func (s *Stream) OnTimer(now uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maintenanceLocked()
}

// Len reports the number of frames currently queued, for diagnostics.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
