// Package trim decides how much of a pre-allocated capture buffer holds
// real audio. The capture device always allocates room for the maximum
// recording length; when the user stops early the tail was never written.
//
// The estimate is proportional: elapsed wall-clock time over the maximum
// duration, applied to the buffer length. It does not look at the
// waveform, so drift between the host clock and the device's sample clock
// shows up directly in the result. A silence detector would be a
// separate component.
package trim

import (
	"math"
	"time"

	"github.com/large-farva/voicememo/internal/wav"
)

// Result records how a buffer was trimmed.
type Result struct {
	ValidSamples int `json:"valid_samples"`
	TotalSamples int `json:"total_samples"`
}

// Discarded returns the number of tail samples dropped.
func (r Result) Discarded() int {
	return r.TotalSamples - r.ValidSamples
}

// ValidSampleCount returns floor(total * elapsed/max) clamped to
// [0, total]. A non-positive max or total yields 0.
func ValidSampleCount(total int, elapsed, max float64) int {
	if total <= 0 || max <= 0 {
		return 0
	}
	ratio := elapsed / max
	if math.IsNaN(ratio) || ratio <= 0 {
		return 0
	}
	if ratio >= 1 {
		return total
	}
	n := math.Floor(float64(total) * ratio)
	if n > float64(total) {
		return total
	}
	return int(n)
}

// Apply slices buf down to the samples recorded during elapsed, rounded
// down to a whole frame. The returned buffer shares buf's backing array;
// the caller hands ownership forward and must not keep using buf.
func Apply(buf wav.Buffer, elapsed, max time.Duration) (wav.Buffer, Result) {
	total := len(buf.Samples)
	n := ValidSampleCount(total, elapsed.Seconds(), max.Seconds())
	if buf.Channels > 0 {
		n -= n % buf.Channels
	}

	out := buf
	out.Samples = buf.Samples[:n:n]
	return out, Result{ValidSamples: n, TotalSamples: total}
}
