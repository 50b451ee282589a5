package video

import (
	"sync"
	"time"

	"github.com/breeze-rmm/spicec/pkg/spice"
)

// lowBandwidthThresholdBps is the trigger spec.md section 4.B names for
// degrading image compression: sustained throughput under 10Mb/s.
const lowBandwidthThresholdBps = 10_000_000

const bandwidthEWMAAlpha = 0.3

// BandwidthEstimator is an AIMD controller over sampled channel
// throughput, degrading the preferred display codec under sustained low
// bandwidth and probing back up once conditions recover. Modeled on the
// teacher's bitrate controller, adapted from "adjust an encoder" to
// "choose a decode-side codec preference" since this client never
// encodes.
type BandwidthEstimator struct {
	mu sync.Mutex

	smoothedBps  float64
	samples      int
	degraded     bool
	stableCount  int
	lastSample   time.Time
}

// NewBandwidthEstimator starts optimistic: GLZ/QUIC preferred until a low
// sample is observed.
func NewBandwidthEstimator() *BandwidthEstimator {
	return &BandwidthEstimator{smoothedBps: lowBandwidthThresholdBps * 2}
}

// Sample feeds bytes observed over elapsed wall-clock time.
func (e *BandwidthEstimator) Sample(bytes uint64, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	bps := float64(bytes*8) / elapsed.Seconds()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples++
	if e.samples == 1 {
		e.smoothedBps = bps
	} else {
		e.smoothedBps = bandwidthEWMAAlpha*bps + (1-bandwidthEWMAAlpha)*e.smoothedBps
	}

	if e.samples < 3 {
		return
	}

	if e.smoothedBps < lowBandwidthThresholdBps {
		e.degraded = true
		e.stableCount = 0
	} else {
		e.stableCount++
		if e.stableCount >= 2 {
			e.degraded = false
		}
	}
}

// PreferredCodec returns which image codec the display channel should
// request the server prefer (spec.md section 4.F lists GLZ/QUIC/LZ/JPEG;
// this picks between the dictionary-heavy GLZ path and the cheaper,
// lossier JPEG path).
func (e *BandwidthEstimator) PreferredCodec() spice.ImageType {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.degraded {
		return spice.ImageJPEG
	}
	return spice.ImageGLZRGB
}

// ByteSampler is satisfied by channel.Base's TakeByteSample, kept as an
// interface here so internal/video doesn't import internal/channel.
type ByteSampler interface {
	TakeByteSample() uint64
}

// RunSampling periodically drains a channel's byte counter and feeds the
// estimator, until stop is closed.
func RunSampling(est *BandwidthEstimator, src ByteSampler, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			bytes := src.TakeByteSample()
			est.Sample(bytes, now.Sub(last))
			last = now
		}
	}
}
