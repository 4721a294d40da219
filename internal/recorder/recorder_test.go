package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/voicememo/internal/device/mock"
	"github.com/large-farva/voicememo/internal/events"
	"github.com/large-farva/voicememo/internal/session"
	"github.com/large-farva/voicememo/internal/storage"
	"github.com/large-farva/voicememo/internal/wav"
)

type harness struct {
	runner *Runner
	dev    *mock.Device
	store  *storage.Dir
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	states []string
	saved  []session.Result
	active int64
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		dev:   &mock.Device{DeviceFormat: wav.Format{SampleRate: 1000, Channels: 1}},
		store: storage.NewDir(t.TempDir()),
		done:  make(chan struct{}),
	}
	if opts.MaxDuration == 0 {
		opts.MaxDuration = time.Minute
	}
	opts.Tick = time.Millisecond
	opts.OnSaved = func(r session.Result) {
		h.mu.Lock()
		h.saved = append(h.saved, r)
		h.mu.Unlock()
	}
	opts.OnActive = func(d int64) {
		h.mu.Lock()
		h.active += d
		h.mu.Unlock()
	}
	h.runner = New(events.NewHub(), nil, h.dev, h.store, opts)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		_ = h.runner.Run(ctx, h.setState)
		close(h.done)
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) setState(s string) {
	h.mu.Lock()
	h.states = append(h.states, s)
	h.mu.Unlock()
}

func (h *harness) lastState() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.states) == 0 {
		return ""
	}
	return h.states[len(h.states)-1]
}

func (h *harness) savedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.saved)
}

func (h *harness) stop() {
	h.cancel()
	<-h.done
}

func send(t *testing.T, r *Runner, typ string, payload any) CommandResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := r.Send(ctx, typ, payload)
	require.NoError(t, err)
	return res
}

func TestStartStopSavesRecording(t *testing.T) {
	h := newHarness(t, Options{FilePrefix: "Memo"})

	res := send(t, h.runner, CmdStart, StartRequest{MaxSeconds: 10})
	require.True(t, res.OK, res.Error)
	assert.NotEmpty(t, res.Session)
	assert.Contains(t, res.Path, "Memo_")

	snap, ok := h.runner.Snapshot()
	require.True(t, ok)
	assert.Equal(t, res.Session, snap.Session)
	assert.Equal(t, "CAPTURING", snap.State)
	assert.Equal(t, 10.0, snap.MaxSeconds)
	assert.Equal(t, "CAPTURING", h.lastState())

	stopped := send(t, h.runner, CmdStop, nil)
	require.True(t, stopped.OK, stopped.Error)
	require.NotNil(t, stopped.Result)
	assert.Equal(t, res.Path, stopped.Result.Path)
	assert.Equal(t, 10000, stopped.Result.Trim.TotalSamples)

	data, err := h.store.ReadBytes(context.Background(), res.Path)
	require.NoError(t, err)
	assert.Len(t, data, stopped.Result.Bytes)

	require.Eventually(t, func() bool { return h.lastState() == "IDLE" }, time.Second, time.Millisecond)
	_, ok = h.runner.Snapshot()
	assert.False(t, ok)
	assert.Equal(t, 1, h.savedCount())
	h.mu.Lock()
	assert.Zero(t, h.active)
	h.mu.Unlock()
}

func TestSecondStartIsRejected(t *testing.T) {
	h := newHarness(t, Options{})

	require.True(t, send(t, h.runner, CmdStart, nil).OK)
	res := send(t, h.runner, CmdStart, nil)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, session.ErrCaptureActive)

	n, _ := h.dev.Starts()
	assert.Equal(t, 1, n)
}

func TestStartOnBusyDevice(t *testing.T) {
	h := newHarness(t, Options{})
	// Someone else holds the device.
	require.NoError(t, h.dev.Start(context.Background(), time.Second))

	res := send(t, h.runner, CmdStart, nil)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, session.ErrCaptureActive)
	assert.Equal(t, "IDLE", h.lastState())
}

func TestStopWithoutCapture(t *testing.T) {
	h := newHarness(t, Options{})
	res := send(t, h.runner, CmdStop, nil)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrNoCapture)

	res = send(t, h.runner, CmdCancel, nil)
	assert.ErrorIs(t, res.Err, ErrNoCapture)
}

func TestAutoStopAtMaxDuration(t *testing.T) {
	h := newHarness(t, Options{})

	require.True(t, send(t, h.runner, CmdStart, StartRequest{MaxSeconds: 0.05}).OK)
	require.Eventually(t, func() bool { return h.savedCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	h.mu.Lock()
	saved := h.saved[0]
	h.mu.Unlock()
	assert.Equal(t, saved.Trim.TotalSamples, saved.Trim.ValidSamples)
	assert.Equal(t, 50, saved.Frames)

	// The slot is free again.
	require.Eventually(t, func() bool { _, ok := h.runner.Snapshot(); return !ok }, time.Second, time.Millisecond)
	assert.True(t, send(t, h.runner, CmdStart, nil).OK)
}

func TestCancelDiscardsCapture(t *testing.T) {
	h := newHarness(t, Options{})

	started := send(t, h.runner, CmdStart, nil)
	require.True(t, started.OK)
	res := send(t, h.runner, CmdCancel, nil)
	require.True(t, res.OK)

	require.Eventually(t, func() bool { _, ok := h.runner.Snapshot(); return !ok }, time.Second, time.Millisecond)
	objs, err := h.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, objs)
	assert.False(t, h.dev.Active())
	assert.Zero(t, h.savedCount())
}

func TestBadCommands(t *testing.T) {
	h := newHarness(t, Options{})

	res := send(t, h.runner, "rewind", nil)
	assert.ErrorIs(t, res.Err, ErrUnknownCommand)

	res = send(t, h.runner, CmdStart, StartRequest{MaxSeconds: -1})
	assert.ErrorIs(t, res.Err, ErrInvalidRequest)

	reply := make(chan CommandResult, 1)
	h.runner.Commands <- Command{Type: CmdStart, Payload: []byte("{"), Reply: reply}
	assert.ErrorIs(t, (<-reply).Err, ErrInvalidRequest)
}

func TestStartRejectsLimitPastWavSize(t *testing.T) {
	h := newHarness(t, Options{})

	// 1000 Hz mono tops out just under 2.15e6 s.
	for _, secs := range []float64{2.2e6, 1e9, 1e12} {
		res := send(t, h.runner, CmdStart, StartRequest{MaxSeconds: secs})
		assert.ErrorIs(t, res.Err, ErrInvalidRequest, "%g", secs)
	}
	n, _ := h.dev.Starts()
	assert.Zero(t, n)
	assert.False(t, h.dev.Active())

	_, ok := h.runner.Snapshot()
	assert.False(t, ok)
}

func TestDefaultLimitPastWavSize(t *testing.T) {
	h := newHarness(t, Options{MaxDuration: 1000 * time.Hour})

	res := send(t, h.runner, CmdStart, nil)
	assert.ErrorIs(t, res.Err, ErrInvalidRequest)
	n, _ := h.dev.Starts()
	assert.Zero(t, n)
}

func TestShutdownCancelsCapture(t *testing.T) {
	h := newHarness(t, Options{})
	require.True(t, send(t, h.runner, CmdStart, nil).OK)

	h.stop()
	assert.False(t, h.dev.Active())
	assert.Zero(t, h.savedCount())
}
