package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/voicememo/internal/wav"
)

func TestToneFillsUntilFull(t *testing.T) {
	tone := NewTone(ToneOptions{
		Format:   wav.Format{SampleRate: 2000, Channels: 2},
		Interval: 5 * time.Millisecond,
	})

	require.NoError(t, tone.Start(context.Background(), 100*time.Millisecond))
	require.Eventually(t, func() bool { return !tone.Filling() }, 2*time.Second, 5*time.Millisecond)

	buf, err := tone.Stop()
	require.NoError(t, err)
	assert.Len(t, buf.Samples, 400)
	assert.Equal(t, wav.Format{SampleRate: 2000, Channels: 2}, buf.Format())
	assert.NoError(t, buf.Validate())
	assert.InDelta(t, 0.5, buf.Peak(), 0.01)

	// Channels carry the same signal.
	for i := 0; i < len(buf.Samples); i += 2 {
		require.Equal(t, buf.Samples[i], buf.Samples[i+1])
	}
}

func TestToneIsSingleton(t *testing.T) {
	tone := NewTone(ToneOptions{Format: wav.Format{SampleRate: 1000, Channels: 1}})

	require.NoError(t, tone.Start(context.Background(), time.Minute))
	assert.ErrorIs(t, tone.Start(context.Background(), time.Minute), ErrBusy)
	assert.True(t, tone.Filling())

	buf, err := tone.Stop()
	require.NoError(t, err)
	assert.Len(t, buf.Samples, 60000)
	assert.False(t, tone.Filling())

	// Released after Stop.
	require.NoError(t, tone.Start(context.Background(), time.Second))
	_, err = tone.Stop()
	require.NoError(t, err)
}

func TestToneStopWithoutStart(t *testing.T) {
	tone := NewTone(ToneOptions{})
	_, err := tone.Stop()
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, wav.Format{SampleRate: 44100, Channels: 1}, tone.Format())
}

func TestToneStopsOnContextCancel(t *testing.T) {
	tone := NewTone(ToneOptions{Format: wav.Format{SampleRate: 1000, Channels: 1}})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, tone.Start(ctx, time.Minute))
	cancel()
	require.Eventually(t, func() bool { return !tone.Filling() }, time.Second, 5*time.Millisecond)

	_, err := tone.Stop()
	require.NoError(t, err)
}
