package trim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/voicememo/internal/wav"
)

func TestValidSampleCount(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		elapsed float64
		max     float64
		want    int
	}{
		{"nothing recorded", 1000, 0, 30, 0},
		{"full length", 1000, 30, 30, 1000},
		{"half", 1000, 15, 30, 500},
		{"floors", 1000, 10, 30, 333},
		{"overrun clamps", 1000, 45, 30, 1000},
		{"negative elapsed", 1000, -1, 30, 0},
		{"zero max", 1000, 10, 0, 0},
		{"negative max", 1000, 10, -5, 0},
		{"empty buffer", 0, 10, 30, 0},
		{"nan elapsed", 1000, math.NaN(), 30, 0},
		{"inf elapsed", 1000, math.Inf(1), 30, 1000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidSampleCount(tc.total, tc.elapsed, tc.max))
		})
	}
}

func TestValidSampleCountMonotonic(t *testing.T) {
	const total, max = 1323000, 30.0
	prev := 0
	for e := -1.0; e <= 31; e += 0.0137 {
		n := ValidSampleCount(total, e, max)
		require.GreaterOrEqual(t, n, prev, "elapsed=%v", e)
		require.GreaterOrEqual(t, n, 0)
		require.LessOrEqual(t, n, total)
		prev = n
	}
	assert.Equal(t, total, prev)
}

func TestApply(t *testing.T) {
	buf := wav.NewBuffer(wav.Format{SampleRate: 100, Channels: 2}, 10*time.Second)
	require.Len(t, buf.Samples, 2000)

	out, res := Apply(buf, 2500*time.Millisecond, 10*time.Second)
	assert.Equal(t, Result{ValidSamples: 500, TotalSamples: 2000}, res)
	assert.Equal(t, 1500, res.Discarded())
	assert.Len(t, out.Samples, 500)
	assert.Equal(t, 2, out.Channels)
	assert.Equal(t, 100, out.SampleRate)
	assert.Equal(t, 2500*time.Millisecond, out.Duration())
}

func TestApplyKeepsWholeFrames(t *testing.T) {
	buf := wav.NewBuffer(wav.Format{SampleRate: 10, Channels: 2}, time.Second)

	// 20 samples * 0.25 = 5, rounded down to 4 for stereo.
	out, res := Apply(buf, 250*time.Millisecond, time.Second)
	assert.Equal(t, 4, res.ValidSamples)
	assert.Len(t, out.Samples, 4)
	assert.Equal(t, 4, cap(out.Samples))
}
