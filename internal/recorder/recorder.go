// Package recorder owns the daemon's single capture slot. HTTP handlers send
// it commands; it runs one capture session at a time, auto-stops at the max
// duration, and reports saved recordings back to the caller that asked for
// the stop.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/large-farva/voicememo/internal/device"
	"github.com/large-farva/voicememo/internal/events"
	"github.com/large-farva/voicememo/internal/session"
	"github.com/large-farva/voicememo/internal/storage"
	"github.com/large-farva/voicememo/internal/wav"
)

// Command is sent to the runner via its Commands channel. Reply receives
// exactly one result.
type Command struct {
	Type    string
	Payload json.RawMessage
	Reply   chan<- CommandResult
}

// Command types.
const (
	CmdStart  = "start"
	CmdStop   = "stop"
	CmdCancel = "cancel"
)

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Session string          `json:"session,omitempty"`
	Path    string          `json:"path,omitempty"`
	Result  *session.Result `json:"result,omitempty"`

	// Err carries the underlying error for status mapping; not serialized.
	Err error `json:"-"`
}

var (
	// ErrNoCapture is returned by stop and cancel when nothing is running.
	ErrNoCapture = errors.New("no capture in progress")

	// ErrUnknownCommand is returned for an unrecognized command type.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidRequest is returned for a malformed command payload.
	ErrInvalidRequest = errors.New("invalid request")
)

// StartRequest is the payload of a start command.
type StartRequest struct {
	MaxSeconds float64 `json:"max_seconds,omitempty"`
}

// Options configures a Runner.
type Options struct {
	MaxDuration time.Duration
	FilePrefix  string
	Tick        time.Duration

	// ProgressInterval is how often a progress event is published while
	// capturing. Zero means every second.
	ProgressInterval time.Duration

	Metrics session.Metrics

	// OnSaved is called from the runner goroutine for each saved recording.
	OnSaved func(session.Result)

	// OnActive is called with +1 when a capture starts and -1 when it ends.
	OnActive func(delta int64)
}

// Snapshot describes the capture in progress.
type Snapshot struct {
	Session        string  `json:"session"`
	Path           string  `json:"path"`
	State          string  `json:"state"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	MaxSeconds     float64 `json:"max_seconds"`
}

type outcome struct {
	res session.Result
	err error
}

// active is the capture currently owning the device.
type active struct {
	capture *session.Capture
	stop    chan struct{}
	stopped bool
	cancel  context.CancelFunc
	done    chan outcome
	waiters []chan<- CommandResult
}

// Runner serializes capture commands against one device.
type Runner struct {
	Hub *events.Hub
	Log *log.Logger

	// Commands receives external commands from HTTP handlers.
	Commands chan Command

	dev   device.Device
	store storage.Storage
	opts  Options

	mu  sync.Mutex
	cur *active
}

// New creates a runner for dev writing into store.
func New(hub *events.Hub, logger *log.Logger, dev device.Device, store storage.Storage, opts Options) *Runner {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = time.Second
	}
	return &Runner{
		Hub:      hub,
		Log:      logger,
		Commands: make(chan Command, 4),
		dev:      dev,
		store:    store,
		opts:     opts,
	}
}

// Send queues a command and waits for its reply or ctx.
func (r *Runner) Send(ctx context.Context, typ string, payload any) (CommandResult, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return CommandResult{}, err
		}
		raw = b
	}
	reply := make(chan CommandResult, 1)
	select {
	case r.Commands <- Command{Type: typ, Payload: raw, Reply: reply}:
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

// Snapshot reports the capture in progress, if any.
func (r *Runner) Snapshot() (Snapshot, bool) {
	r.mu.Lock()
	cur := r.cur
	r.mu.Unlock()
	if cur == nil {
		return Snapshot{}, false
	}
	c := cur.capture
	return Snapshot{
		Session:        c.ID,
		Path:           c.Path(),
		State:          string(c.State()),
		ElapsedSeconds: c.Elapsed().Seconds(),
		MaxSeconds:     c.MaxDuration().Seconds(),
	}, true
}

// Run is the command loop. setState receives the daemon state: IDLE, or
// the active session's state while a capture runs. When ctx ends any
// capture in progress is cancelled without saving.
func (r *Runner) Run(ctx context.Context, setState func(string)) error {
	r.broadcast(events.NewLog("recorder", "info", "recorder started"))
	setState("IDLE")

	for {
		var done <-chan outcome
		r.mu.Lock()
		if r.cur != nil {
			done = r.cur.done
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case cmd := <-r.Commands:
			r.handleCommand(ctx, cmd, setState)
		case out := <-done:
			r.finish(out)
			setState("IDLE")
		}
	}
}

func (r *Runner) handleCommand(ctx context.Context, cmd Command, setState func(string)) {
	switch cmd.Type {
	case CmdStart:
		r.handleStart(ctx, cmd, setState)
	case CmdStop:
		r.handleStop(cmd)
	case CmdCancel:
		r.handleCancel(cmd)
	default:
		cmd.Reply <- failed(fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Type))
	}
}

func (r *Runner) handleStart(ctx context.Context, cmd Command, setState func(string)) {
	var req StartRequest
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			cmd.Reply <- failed(fmt.Errorf("%w: %w", ErrInvalidRequest, err))
			return
		}
	}
	if req.MaxSeconds < 0 {
		cmd.Reply <- failed(fmt.Errorf("%w: max_seconds must be >= 0", ErrInvalidRequest))
		return
	}

	r.mu.Lock()
	busy := r.cur != nil
	r.mu.Unlock()
	if busy {
		cmd.Reply <- failed(&session.OpError{Op: "start", Err: session.ErrCaptureActive})
		return
	}

	// The device pre-allocates the whole buffer, so the limit must fit a
	// WAV file before anything is started.
	ceiling := wav.MaxDuration(r.dev.Format())
	limit := r.opts.MaxDuration
	if req.MaxSeconds > 0 {
		if req.MaxSeconds > ceiling.Seconds() {
			cmd.Reply <- failed(fmt.Errorf("%w: max_seconds %g exceeds the %.0fs wav limit", ErrInvalidRequest, req.MaxSeconds, ceiling.Seconds()))
			return
		}
		limit = time.Duration(req.MaxSeconds * float64(time.Second))
	}
	if limit > ceiling {
		cmd.Reply <- failed(fmt.Errorf("%w: max duration %s exceeds the %s wav limit", ErrInvalidRequest, limit, ceiling))
		return
	}

	var c *session.Capture
	prev := session.StateIdle
	c = session.NewCapture(r.dev, r.store, session.CaptureOptions{
		MaxDuration: limit,
		FilePrefix:  r.opts.FilePrefix,
		Tick:        r.opts.Tick,
		Logger:      r.Log,
		Metrics:     r.opts.Metrics,
		OnState: func(s session.State) {
			r.broadcast(events.NewStateTransition(c.ID, string(prev), string(s)))
			prev = s
			if !s.Terminal() {
				setState(string(s))
			}
		},
	})

	capCtx, cancel := context.WithCancel(ctx)
	if err := c.Start(capCtx); err != nil {
		cancel()
		setState("IDLE")
		cmd.Reply <- failed(err)
		return
	}

	a := &active{
		capture: c,
		stop:    make(chan struct{}),
		cancel:  cancel,
		done:    make(chan outcome, 1),
	}
	r.mu.Lock()
	r.cur = a
	r.mu.Unlock()
	if r.opts.OnActive != nil {
		r.opts.OnActive(1)
	}

	go r.capture(capCtx, a)

	r.broadcast(events.NewLog("recorder", "info",
		fmt.Sprintf("capturing up to %s into %s", limit.Truncate(time.Millisecond), c.Path())))
	cmd.Reply <- CommandResult{
		OK:      true,
		Message: fmt.Sprintf("capture started (max %s)", limit.Truncate(time.Millisecond)),
		Session: c.ID,
		Path:    c.Path(),
	}
}

// capture waits for a stop condition, then trims, encodes and saves. It
// publishes progress while waiting.
func (r *Runner) capture(ctx context.Context, a *active) {
	c := a.capture
	waitDone := make(chan struct{})
	go r.progress(c, waitDone)

	err := c.Wait(ctx, a.stop)
	close(waitDone)
	if err != nil {
		a.done <- outcome{err: err}
		return
	}
	// Saving must finish even if the capture is cancelled mid-write.
	res, err := c.Stop(context.WithoutCancel(ctx))
	a.done <- outcome{res: res, err: err}
}

func (r *Runner) progress(c *session.Capture, done <-chan struct{}) {
	t := time.NewTicker(r.opts.ProgressInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			elapsed, limit := c.Elapsed(), c.MaxDuration()
			pct := 100 * elapsed.Seconds() / limit.Seconds()
			if pct > 100 {
				pct = 100
			}
			r.broadcast(events.NewProgress(c.ID, "recording", pct,
				fmt.Sprintf("%s of %s", elapsed.Truncate(100*time.Millisecond), limit)))
		}
	}
}

func (r *Runner) handleStop(cmd Command) {
	r.mu.Lock()
	a := r.cur
	if a != nil {
		a.waiters = append(a.waiters, cmd.Reply)
		if !a.stopped {
			a.stopped = true
			close(a.stop)
		}
	}
	r.mu.Unlock()

	if a == nil {
		cmd.Reply <- failed(ErrNoCapture)
	}
	// Otherwise the reply is sent by finish.
}

func (r *Runner) handleCancel(cmd Command) {
	r.mu.Lock()
	a := r.cur
	r.mu.Unlock()

	if a == nil {
		cmd.Reply <- failed(ErrNoCapture)
		return
	}
	a.cancel()
	r.broadcast(events.NewLog("recorder", "info", "capture cancelled by user"))
	cmd.Reply <- CommandResult{OK: true, Message: "capture cancelled", Session: a.capture.ID}
}

// finish clears the slot and answers anyone waiting on a stop.
func (r *Runner) finish(out outcome) {
	r.mu.Lock()
	a := r.cur
	r.cur = nil
	r.mu.Unlock()
	if a == nil {
		return
	}
	a.cancel()
	if r.opts.OnActive != nil {
		r.opts.OnActive(-1)
	}

	var res CommandResult
	if out.err != nil {
		res = failed(out.err)
		res.Session = a.capture.ID
		r.broadcast(events.NewLog("recorder", "error", "capture failed: "+out.err.Error()))
	} else {
		saved := out.res
		res = CommandResult{
			OK:      true,
			Message: fmt.Sprintf("saved %s (%s)", saved.Path, saved.Duration.Truncate(time.Millisecond)),
			Session: saved.ID,
			Path:    saved.Path,
			Result:  &saved,
		}
		r.broadcast(events.NewRecordingSaved(saved.ID, saved.Path, saved.Bytes, saved.Duration,
			saved.Trim.ValidSamples, saved.Trim.TotalSamples))
		if r.opts.OnSaved != nil {
			r.opts.OnSaved(saved)
		}
	}
	for _, w := range a.waiters {
		w <- res
	}
}

// shutdown cancels any running capture and waits for it to unwind.
func (r *Runner) shutdown() {
	r.mu.Lock()
	a := r.cur
	r.mu.Unlock()
	if a == nil {
		return
	}
	a.cancel()
	r.finish(<-a.done)
}

func (r *Runner) broadcast(v any) {
	if r.Hub != nil {
		r.Hub.Publish(v)
	}
}

func failed(err error) CommandResult {
	return CommandResult{OK: false, Error: err.Error(), Err: err}
}
