// Package wav converts between interleaved float sample buffers and
// canonical 16-bit PCM WAV byte streams. Everything here is pure
// computation: no I/O beyond the writer handed to Write, no shared state,
// so independent buffers can be encoded and decoded concurrently.
package wav

import (
	"fmt"
	"math"
	"time"
)

// Format describes the sample rate and channel count of a buffer.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// Buffer is a fixed-length run of normalized samples. Frames are
// interleaved: one sample per channel, stored consecutively.
//
// A Buffer is owned by whoever currently holds it. Once handed to Encode
// or returned from Decode the previous holder must not touch Samples.
type Buffer struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// NewBuffer allocates a zeroed buffer long enough for d of audio in f.
func NewBuffer(f Format, d time.Duration) Buffer {
	frames := int(d.Seconds() * float64(f.SampleRate))
	if frames < 0 {
		frames = 0
	}
	return Buffer{
		Samples:    make([]float32, frames*f.Channels),
		Channels:   f.Channels,
		SampleRate: f.SampleRate,
	}
}

// MaxDuration returns the longest recording in f whose 16-bit payload fits
// in a WAV file. Zero for an invalid format.
func MaxDuration(f Format) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := uint64(maxDataSize) / bytesPerSample / uint64(f.Channels)
	return time.Duration(float64(frames) / float64(f.SampleRate) * float64(time.Second))
}

// Format returns the buffer's sample rate and channel count.
func (b Buffer) Format() Format {
	return Format{SampleRate: b.SampleRate, Channels: b.Channels}
}

// Frames returns the number of whole frames in the buffer.
func (b Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Peak returns the largest absolute sample value.
func (b Buffer) Peak() float32 {
	var peak float32
	for _, s := range b.Samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// Validate checks the buffer invariants. Non-finite samples are rejected
// rather than coerced; out-of-range finite samples are left to the
// encoder's clamp.
func (b Buffer) Validate() error {
	if b.Channels <= 0 {
		return fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidInput, b.Channels)
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidInput, b.SampleRate)
	}
	if len(b.Samples)%b.Channels != 0 {
		return fmt.Errorf("%w: %d samples is not a multiple of %d channels", ErrInvalidInput, len(b.Samples), b.Channels)
	}
	for i, s := range b.Samples {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite sample %v at index %d", ErrInvalidInput, s, i)
		}
	}
	return nil
}
