package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/voicememo/internal/device"
	"github.com/large-farva/voicememo/internal/storage"
	"github.com/large-farva/voicememo/internal/trim"
	"github.com/large-farva/voicememo/internal/wav"
)

const (
	DefaultMaxDuration = 30 * time.Second
	DefaultFilePrefix  = "Audio"
	DefaultTick        = 50 * time.Millisecond
)

// CaptureOptions configures a record session. Zero values pick defaults.
type CaptureOptions struct {
	MaxDuration time.Duration
	Path        string // defaults to FileName(FilePrefix, start time)
	FilePrefix  string
	Tick        time.Duration // how often Wait polls
	Clock       Clock
	Logger      *log.Logger
	OnState     func(State)
	Metrics     Metrics
}

// Result describes a saved recording.
type Result struct {
	ID       string        `json:"id"`
	Path     string        `json:"path"`
	Trim     trim.Result   `json:"trim"`
	Format   wav.Format    `json:"format"`
	Frames   int           `json:"frames"`
	Duration time.Duration `json:"duration_ns"`
	Bytes    int           `json:"bytes"`
	SavedAt  time.Time     `json:"saved_at"`
}

// Capture records one clip from a device into storage.
type Capture struct {
	ID string

	dev   device.Device
	store storage.Storage
	opts  CaptureOptions

	mu      sync.Mutex
	state   State
	busy    bool // a Start or Stop is in progress
	path    string
	started time.Time
	stopped time.Time
}

// NewCapture returns an idle record session.
func NewCapture(dev device.Device, store storage.Storage, opts CaptureOptions) *Capture {
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.FilePrefix == "" {
		opts.FilePrefix = DefaultFilePrefix
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	return &Capture{
		ID:    uuid.NewString(),
		dev:   dev,
		store: store,
		opts:  opts,
		state: StateIdle,
	}
}

// State returns the current state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Path returns the destination name, known once Start has run.
func (c *Capture) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// MaxDuration returns the capture limit.
func (c *Capture) MaxDuration() time.Duration { return c.opts.MaxDuration }

func (c *Capture) transition(s State) {
	c.mu.Lock()
	c.state = s
	c.busy = false
	c.mu.Unlock()
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

func (c *Capture) fail(ctx context.Context, op string, err error) error {
	path := c.Path()
	c.transition(StateFailed)

	if c.opts.Metrics != nil {
		c.opts.Metrics.OpFailed(ctx, "record", op)
	}
	logf(c.opts.Logger, "session %s: %s failed: %v", c.ID, op, err)
	return &OpError{Op: op, Path: path, Err: err}
}

// Start asks the device to begin filling a buffer sized for MaxDuration.
// The device keeps filling until Stop, so ctx should outlive the capture.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle || c.busy {
		st := c.state
		c.mu.Unlock()
		return &OpError{Op: "start", Err: fmt.Errorf("%w: %s", ErrInvalidState, st)}
	}
	c.busy = true
	c.started = c.opts.Clock.Now()
	c.path = c.opts.Path
	if c.path == "" {
		c.path = FileName(c.opts.FilePrefix, c.started)
	}
	c.mu.Unlock()

	if err := c.dev.Start(ctx, c.opts.MaxDuration); err != nil {
		if errors.Is(err, device.ErrBusy) {
			err = fmt.Errorf("%w: %w", ErrCaptureActive, err)
		}
		return c.fail(ctx, "start", err)
	}

	c.transition(StateCapturing)
	logf(c.opts.Logger, "session %s: capturing up to %s into %s", c.ID, c.opts.MaxDuration, c.Path())
	return nil
}

// Elapsed returns the time since Start, frozen once Stop begins.
func (c *Capture) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() {
		return 0
	}
	if !c.stopped.IsZero() {
		return c.stopped.Sub(c.started)
	}
	return c.opts.Clock.Now().Sub(c.started)
}

// Wait blocks until stop is signalled, the device stops filling, or the
// elapsed time reaches MaxDuration. A nil stop channel is never signalled.
// If ctx ends first the device is released and nothing is saved.
func (c *Capture) Wait(ctx context.Context, stop <-chan struct{}) error {
	if st := c.State(); st != StateCapturing {
		return &OpError{Op: "capture", Path: c.Path(), Err: fmt.Errorf("%w: %s", ErrInvalidState, st)}
	}

	t := time.NewTicker(c.opts.Tick)
	defer t.Stop()

	for {
		if !c.dev.Filling() || c.Elapsed() >= c.opts.MaxDuration {
			return nil
		}
		select {
		case <-ctx.Done():
			return c.abort(ctx, ctx.Err())
		case <-stop:
			return nil
		case <-t.C:
		}
	}
}

// abort releases the device and fails the session without saving.
func (c *Capture) abort(ctx context.Context, cause error) error {
	c.mu.Lock()
	owned := c.state == StateCapturing && !c.busy
	if owned {
		c.busy = true
	}
	c.mu.Unlock()

	if !owned {
		// Stop already owns the device.
		return &OpError{Op: "capture", Path: c.Path(), Err: cause}
	}
	if _, err := c.dev.Stop(); err != nil {
		logf(c.opts.Logger, "session %s: release device: %v", c.ID, err)
	}
	return c.fail(context.WithoutCancel(ctx), "capture", cause)
}

// Stop ends the capture, trims the buffer to the elapsed share of
// MaxDuration, encodes it and writes it to storage. Storage errors are
// returned wrapped in ErrStorageFailure and are not retried.
func (c *Capture) Stop(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.state != StateCapturing || c.busy {
		st := c.state
		c.mu.Unlock()
		return Result{}, &OpError{Op: "capture", Path: c.Path(), Err: fmt.Errorf("%w: %s", ErrInvalidState, st)}
	}
	c.busy = true
	c.stopped = c.opts.Clock.Now()
	path := c.path
	c.mu.Unlock()

	elapsed := c.Elapsed()
	raw, err := c.dev.Stop()
	if err != nil {
		return Result{}, c.fail(ctx, "capture", err)
	}

	c.transition(StateTrimming)
	trimmed, tr := trim.Apply(raw, elapsed, c.opts.MaxDuration)
	logf(c.opts.Logger, "session %s: kept %d of %d samples (%s of %s)",
		c.ID, tr.ValidSamples, tr.TotalSamples, elapsed.Truncate(time.Millisecond), c.opts.MaxDuration)

	c.transition(StateEncoding)
	encStart := time.Now()
	data, err := wav.Encode(trimmed, len(trimmed.Samples))
	if err != nil {
		return Result{}, c.fail(ctx, "encode", err)
	}
	encDur := time.Since(encStart)

	if err := c.store.WriteBytes(ctx, path, data); err != nil {
		return Result{}, c.fail(ctx, "write", storageFailure(err))
	}

	res := Result{
		ID:       c.ID,
		Path:     path,
		Trim:     tr,
		Format:   trimmed.Format(),
		Frames:   trimmed.Frames(),
		Duration: trimmed.Duration(),
		Bytes:    len(data),
		SavedAt:  c.opts.Clock.Now(),
	}

	c.transition(StateSaved)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CaptureSaved(ctx, res.Duration, tr.Discarded(), res.Bytes, encDur)
	}
	logf(c.opts.Logger, "session %s: saved %s (%d bytes, %s)", c.ID, path, res.Bytes, res.Duration.Truncate(time.Millisecond))
	return res, nil
}

// Record runs Start, Wait and Stop in sequence.
func (c *Capture) Record(ctx context.Context, stop <-chan struct{}) (Result, error) {
	if err := c.Start(ctx); err != nil {
		return Result{}, err
	}
	if err := c.Wait(ctx, stop); err != nil {
		return Result{}, err
	}
	return c.Stop(ctx)
}
