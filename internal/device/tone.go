package device

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/voicememo/internal/wav"
)

// Tone is a simulated capture device that writes a sine wave into its
// buffer at real-time pace, the same way a microphone would fill it.
type Tone struct {
	format    wav.Format
	freq      float64
	amplitude float64
	interval  time.Duration

	active  atomic.Bool
	filling atomic.Bool

	mu     sync.Mutex
	buf    wav.Buffer
	cancel context.CancelFunc
	done   chan struct{}
}

// ToneOptions configures a Tone device. Zero values pick defaults.
type ToneOptions struct {
	Format    wav.Format
	Frequency float64       // Hz, default 440
	Amplitude float64       // 0..1, default 0.5
	Interval  time.Duration // how often samples are written, default 20ms
}

// NewTone returns a simulated device.
func NewTone(opts ToneOptions) *Tone {
	if opts.Format.SampleRate <= 0 {
		opts.Format.SampleRate = 44100
	}
	if opts.Format.Channels <= 0 {
		opts.Format.Channels = 1
	}
	if opts.Frequency <= 0 {
		opts.Frequency = 440
	}
	if opts.Amplitude <= 0 || opts.Amplitude > 1 {
		opts.Amplitude = 0.5
	}
	if opts.Interval <= 0 {
		opts.Interval = 20 * time.Millisecond
	}
	return &Tone{
		format:    opts.Format,
		freq:      opts.Frequency,
		amplitude: opts.Amplitude,
		interval:  opts.Interval,
	}
}

func (t *Tone) Format() wav.Format { return t.format }

func (t *Tone) Filling() bool { return t.filling.Load() }

// Start allocates a buffer for max and starts the writer goroutine.
func (t *Tone) Start(ctx context.Context, max time.Duration) error {
	if !t.active.CompareAndSwap(false, true) {
		return ErrBusy
	}

	buf := wav.NewBuffer(t.format, max)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	t.mu.Lock()
	t.buf = buf
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	t.filling.Store(true)
	go t.fill(runCtx, buf, done)
	return nil
}

// fill writes frames in step with the wall clock until the buffer is full
// or the capture is stopped.
func (t *Tone) fill(ctx context.Context, buf wav.Buffer, done chan struct{}) {
	defer close(done)
	defer t.filling.Store(false)

	frames := buf.Frames()
	ch := t.format.Channels
	step := 2 * math.Pi * t.freq / float64(t.format.SampleRate)

	start := time.Now()
	tick := time.NewTicker(t.interval)
	defer tick.Stop()

	written := 0
	for written < frames {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		target := int(time.Since(start).Seconds() * float64(t.format.SampleRate))
		if target > frames {
			target = frames
		}
		for ; written < target; written++ {
			v := float32(t.amplitude * math.Sin(step*float64(written)))
			for c := range ch {
				buf.Samples[written*ch+c] = v
			}
		}
	}
}

// Stop halts the writer and returns the full pre-allocated buffer.
func (t *Tone) Stop() (wav.Buffer, error) {
	if !t.active.Load() {
		return wav.Buffer{}, ErrNotStarted
	}

	t.mu.Lock()
	cancel, done, buf := t.cancel, t.done, t.buf
	t.buf, t.cancel, t.done = wav.Buffer{}, nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return wav.Buffer{}, ErrNotStarted
	}
	cancel()
	<-done

	t.active.Store(false)
	return buf, nil
}
