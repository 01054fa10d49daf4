package visualize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FunctionalFactory/music-assistant-v2/internal/audio"
	"github.com/FunctionalFactory/music-assistant-v2/internal/dsp"
)

func sineBuffer(t *testing.T, freq, dur float64) *audio.Buffer {
	t.Helper()
	n := int(dur * audio.AnalysisRate)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/audio.AnalysisRate)
	}
	buf, err := audio.New(samples, audio.AnalysisRate)
	require.NoError(t, err)
	return buf
}

func TestSampleWaveform(t *testing.T) {
	t.Run("CappedLength", func(t *testing.T) {
		buf := sineBuffer(t, 440, 2.0)
		wf := SampleWaveform(buf, 2000)

		assert.LessOrEqual(t, len(wf.Data), 2000)
		assert.Equal(t, len(wf.Data), len(wf.Times))
		assert.NotEmpty(t, wf.Data)
	})

	t.Run("ShortInputKeptWhole", func(t *testing.T) {
		buf := sineBuffer(t, 440, 0.1)
		wf := SampleWaveform(buf, 10000)
		assert.Equal(t, buf.Len(), len(wf.Data))
	})

	t.Run("TimesMonotonicWithinDuration", func(t *testing.T) {
		buf := sineBuffer(t, 440, 1.5)
		wf := SampleWaveform(buf, 500)

		for i := 1; i < len(wf.Times); i++ {
			assert.Greater(t, wf.Times[i], wf.Times[i-1])
		}
		assert.Less(t, wf.Times[len(wf.Times)-1], buf.Duration())
	})

	t.Run("Deterministic", func(t *testing.T) {
		buf := sineBuffer(t, 440, 1.0)
		a := SampleWaveform(buf, 300)
		b := SampleWaveform(buf, 300)
		assert.Equal(t, a, b)
	})

	t.Run("DefaultCap", func(t *testing.T) {
		buf := sineBuffer(t, 440, 2.0)
		wf := SampleWaveform(buf, 0)
		assert.LessOrEqual(t, len(wf.Data), DefaultMaxWaveformPoints)
	})
}

func TestSampleSpectrogram(t *testing.T) {
	buf := sineBuffer(t, 440, 2.0)
	spec := dsp.STFT(buf.Samples(), buf.SampleRate(), 0, 0)

	t.Run("GridDimensions", func(t *testing.T) {
		grid := SampleSpectrogram(spec, 100, 100)

		require.Len(t, grid.Grid, 100)
		for _, row := range grid.Grid {
			assert.Len(t, row, 100)
		}
		assert.Len(t, grid.TimeAxis, 100)
		assert.Len(t, grid.FreqAxis, 100)
	})

	t.Run("DecibelRange", func(t *testing.T) {
		grid := SampleSpectrogram(spec, 50, 50)
		for _, row := range grid.Grid {
			for _, v := range row {
				assert.LessOrEqual(t, v, 0.0, "dB values are relative to the peak")
				assert.GreaterOrEqual(t, v, -80.0)
			}
		}
	})

	t.Run("EnergyNearTone", func(t *testing.T) {
		grid := SampleSpectrogram(spec, 50, 50)

		// Find the frequency row covering 440 Hz.
		toneRow := 0
		for y, f := range grid.FreqAxis {
			if f <= 440 {
				toneRow = y
			}
		}

		hot := maxRow(grid.Grid[toneRow])
		quiet := maxRow(grid.Grid[len(grid.Grid)-1])
		assert.Greater(t, hot, quiet, "energy concentrates around the tone, not at Nyquist")
	})

	t.Run("AxesMonotonic", func(t *testing.T) {
		grid := SampleSpectrogram(spec, 80, 60)
		for i := 1; i < len(grid.TimeAxis); i++ {
			assert.GreaterOrEqual(t, grid.TimeAxis[i], grid.TimeAxis[i-1])
		}
		for i := 1; i < len(grid.FreqAxis); i++ {
			assert.Greater(t, grid.FreqAxis[i], grid.FreqAxis[i-1])
		}
	})

	t.Run("WidthClampedToFrames", func(t *testing.T) {
		short := sineBuffer(t, 440, 0.12)
		smallSpec := dsp.STFT(short.Samples(), short.SampleRate(), 0, 0)
		grid := SampleSpectrogram(smallSpec, 100, 100)
		assert.LessOrEqual(t, len(grid.TimeAxis), smallSpec.NumFrames())
	})
}

func maxRow(row []float64) float64 {
	max := math.Inf(-1)
	for _, v := range row {
		if v > max {
			max = v
		}
	}
	return max
}
