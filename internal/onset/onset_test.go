package onset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FunctionalFactory/music-assistant-v2/internal/audio"
	"github.com/FunctionalFactory/music-assistant-v2/internal/dsp"
	apperrors "github.com/FunctionalFactory/music-assistant-v2/internal/errors"
)

// burstBuffer synthesizes sine bursts starting at the given times, each
// lasting 0.1s, over the total duration.
func burstBuffer(t *testing.T, starts []float64, seconds float64) *audio.Buffer {
	t.Helper()
	n := int(seconds * audio.AnalysisRate)
	samples := make([]float64, n)
	for _, start := range starts {
		lo := int(start * audio.AnalysisRate)
		hi := lo + int(0.1*audio.AnalysisRate)
		if hi > n {
			hi = n
		}
		for i := lo; i < hi; i++ {
			samples[i] = 0.8 * math.Sin(2*math.Pi*440*float64(i)/audio.AnalysisRate)
		}
	}
	buf, err := audio.New(samples, audio.AnalysisRate)
	require.NoError(t, err)
	return buf
}

func TestNewDetector(t *testing.T) {
	t.Run("ValidParams", func(t *testing.T) {
		d, err := NewDetector(0.14, 0.03, 0, 0)
		require.NoError(t, err)
		require.NotNil(t, d)
	})

	t.Run("RejectsOutOfRange", func(t *testing.T) {
		cases := []struct {
			name        string
			delta, wait float64
		}{
			{"DeltaTooLow", 0.001, 0.03},
			{"DeltaTooHigh", 1.5, 0.03},
			{"DeltaNegative", -0.1, 0.03},
			{"WaitTooLow", 0.14, 0.001},
			{"WaitTooHigh", 0.14, 0.8},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := NewDetector(tc.delta, tc.wait, 0, 0)
				require.Error(t, err)
				assert.True(t, apperrors.IsConfigError(err))
			})
		}
	})
}

func TestDetect(t *testing.T) {
	t.Run("Silence", func(t *testing.T) {
		samples := make([]float64, 2*audio.AnalysisRate)
		buf, err := audio.New(samples, audio.AnalysisRate)
		require.NoError(t, err)

		d, err := NewDetector(0.14, 0.03, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, d.Detect(buf))
	})

	t.Run("BurstsLocated", func(t *testing.T) {
		starts := []float64{0.5, 1.2, 1.9}
		buf := burstBuffer(t, starts, 2.5)

		d, err := NewDetector(0.14, 0.05, 0, 0)
		require.NoError(t, err)
		onsets := d.Detect(buf)
		require.Len(t, onsets, len(starts))

		for i, want := range starts {
			assert.InDelta(t, want, onsets[i], 0.06, "onset %d", i)
		}
	})

	t.Run("StrictlyIncreasing", func(t *testing.T) {
		buf := burstBuffer(t, []float64{0.3, 0.8, 1.3, 1.8}, 2.2)
		d, err := NewDetector(0.1, 0.03, 0, 0)
		require.NoError(t, err)

		onsets := d.Detect(buf)
		for i := 1; i < len(onsets); i++ {
			assert.Greater(t, onsets[i], onsets[i-1])
		}
	})

	t.Run("WaitSeparationInvariant", func(t *testing.T) {
		buf := burstBuffer(t, []float64{0.3, 0.45, 0.6, 0.75, 1.5}, 2.0)
		for _, wait := range []float64{0.03, 0.1, 0.3, 0.5} {
			d, err := NewDetector(0.1, wait, 0, 0)
			require.NoError(t, err)

			onsets := d.Detect(buf)
			for i := 1; i < len(onsets); i++ {
				assert.GreaterOrEqual(t, onsets[i]-onsets[i-1], wait,
					"wait=%.2f: gap between %f and %f", wait, onsets[i-1], onsets[i])
			}
		}
	})

	t.Run("DeltaMonotonicity", func(t *testing.T) {
		buf := burstBuffer(t, []float64{0.3, 0.9, 1.5}, 2.0)

		prevCount := -1
		for _, delta := range []float64{0.01, 0.1, 0.3, 0.6, 1.0} {
			d, err := NewDetector(delta, 0.03, 0, 0)
			require.NoError(t, err)
			count := len(d.Detect(buf))
			if prevCount >= 0 {
				assert.LessOrEqual(t, count, prevCount,
					"raising delta to %.2f must not add onsets", delta)
			}
			prevCount = count
		}
	})
}

func TestStrength(t *testing.T) {
	buf := burstBuffer(t, []float64{0.5}, 1.5)
	spec := dsp.STFT(buf.Samples(), buf.SampleRate(), 0, 0)

	env := Strength(spec)
	require.NotEmpty(t, env)

	max := 0.0
	for _, v := range env {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		if v > max {
			max = v
		}
	}
	assert.Equal(t, 1.0, max, "envelope is normalized to peak 1")
}
