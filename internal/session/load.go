package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/voicememo/internal/storage"
	"github.com/large-farva/voicememo/internal/wav"
)

// DefaultMinDuration is the shortest clip worth playing back.
const DefaultMinDuration = 100 * time.Millisecond

// LoadOptions configures a load session. Zero values pick defaults.
type LoadOptions struct {
	MinDuration time.Duration
	Logger      *log.Logger
	OnState     func(State)
	Metrics     Metrics
}

// Load reads one WAV file back from storage into a buffer.
type Load struct {
	ID string

	store storage.Storage
	opts  LoadOptions

	mu    sync.Mutex
	state State
}

// NewLoad returns an idle load session.
func NewLoad(store storage.Storage, opts LoadOptions) *Load {
	if opts.MinDuration <= 0 {
		opts.MinDuration = DefaultMinDuration
	}
	return &Load{
		ID:    uuid.NewString(),
		store: store,
		opts:  opts,
		state: StateIdle,
	}
}

// State returns the current state.
func (l *Load) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Load) transition(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	if l.opts.OnState != nil {
		l.opts.OnState(s)
	}
}

func (l *Load) fail(ctx context.Context, op, path string, err error) error {
	l.transition(StateFailed)
	if l.opts.Metrics != nil {
		l.opts.Metrics.OpFailed(ctx, "load", op)
	}
	logf(l.opts.Logger, "session %s: %s %s failed: %v", l.ID, op, path, err)
	return &OpError{Op: op, Path: path, Err: err}
}

// Load reads path, decodes it and rejects clips shorter than MinDuration
// with ErrLoadTooShort. No buffer is returned alongside an error.
func (l *Load) Load(ctx context.Context, path string) (wav.Buffer, error) {
	l.mu.Lock()
	if l.state != StateIdle {
		st := l.state
		l.mu.Unlock()
		return wav.Buffer{}, &OpError{Op: "read", Path: path, Err: fmt.Errorf("%w: %s", ErrInvalidState, st)}
	}
	l.state = StateLoading
	l.mu.Unlock()
	if l.opts.OnState != nil {
		l.opts.OnState(StateLoading)
	}

	data, err := l.store.ReadBytes(ctx, path)
	if err != nil {
		return wav.Buffer{}, l.fail(ctx, "read", path, storageFailure(err))
	}

	l.transition(StateDecoding)
	buf, err := wav.Decode(data)
	if err != nil {
		return wav.Buffer{}, l.fail(ctx, "decode", path, err)
	}

	if d := buf.Duration(); d < l.opts.MinDuration {
		return wav.Buffer{}, l.fail(ctx, "validate", path,
			fmt.Errorf("%w: %s is under %s", ErrLoadTooShort, d, l.opts.MinDuration))
	}

	l.transition(StateReady)
	if l.opts.Metrics != nil {
		l.opts.Metrics.LoadDone(ctx, buf.Duration())
	}
	logf(l.opts.Logger, "session %s: loaded %s (%d frames, %s)", l.ID, path, buf.Frames(), buf.Duration().Truncate(time.Millisecond))
	return buf, nil
}
