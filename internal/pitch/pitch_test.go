package pitch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FunctionalFactory/music-assistant-v2/internal/audio"
)

func sineBuffer(t *testing.T, freq float64, seconds float64, amplitude float64) *audio.Buffer {
	t.Helper()
	n := int(seconds * audio.AnalysisRate)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/audio.AnalysisRate)
	}
	buf, err := audio.New(samples, audio.AnalysisRate)
	require.NoError(t, err)
	return buf
}

func TestNameForFrequency(t *testing.T) {
	t.Run("ReferenceTable", func(t *testing.T) {
		// 12 semitones across 3 octaves.
		cases := []struct {
			freq float64
			want string
		}{
			{130.81, "C3"},
			{138.59, "C#3"},
			{146.83, "D3"},
			{155.56, "D#3"},
			{164.81, "E3"},
			{174.61, "F3"},
			{185.00, "F#3"},
			{196.00, "G3"},
			{207.65, "G#3"},
			{220.00, "A3"},
			{233.08, "A#3"},
			{246.94, "B3"},
			{261.63, "C4"},
			{329.63, "E4"},
			{440.00, "A4"},
			{523.25, "C5"},
			{659.26, "E5"},
			{880.00, "A5"},
		}
		for _, tc := range cases {
			name, ok := NameForFrequency(tc.freq)
			require.True(t, ok, "%.2f Hz should be in range", tc.freq)
			assert.Equal(t, tc.want, name, "%.2f Hz", tc.freq)
		}
	})

	t.Run("OutOfRange", func(t *testing.T) {
		for _, freq := range []float64{0, -440, 10, 15.9, 8001, 22050} {
			name, ok := NameForFrequency(freq)
			assert.False(t, ok, "%.2f Hz should be out of range", freq)
			assert.Empty(t, name)
		}
	})
}

func TestMIDIForFrequency(t *testing.T) {
	midi, ok := MIDIForFrequency(440.0)
	require.True(t, ok)
	assert.Equal(t, 69, midi)

	midi, ok = MIDIForFrequency(261.63)
	require.True(t, ok)
	assert.Equal(t, 60, midi)

	_, ok = MIDIForFrequency(5)
	assert.False(t, ok)
}

func TestNoteParts(t *testing.T) {
	step, alter, octave, ok := NoteParts(466.16) // A#4
	require.True(t, ok)
	assert.Equal(t, "A", step)
	assert.Equal(t, 1, alter)
	assert.Equal(t, 4, octave)

	step, alter, octave, ok = NoteParts(440.0)
	require.True(t, ok)
	assert.Equal(t, "A", step)
	assert.Equal(t, 0, alter)
	assert.Equal(t, 4, octave)
}

func TestTrack(t *testing.T) {
	t.Run("PureSine", func(t *testing.T) {
		buf := sineBuffer(t, 440.0, 1.0, 0.8)
		points := NewTracker(0, 0).Track(buf)
		require.NotEmpty(t, points)

		voiced := 0
		for _, p := range points {
			if !p.Voiced {
				continue
			}
			voiced++
			assert.InDelta(t, 440.0, p.Frequency, 6.0)
			name, ok := NameForFrequency(p.Frequency)
			require.True(t, ok)
			assert.Equal(t, "A4", name)
		}
		assert.Greater(t, voiced, len(points)/2, "most frames of a sine should be voiced")
	})

	t.Run("Silence", func(t *testing.T) {
		samples := make([]float64, audio.AnalysisRate)
		buf, err := audio.New(samples, audio.AnalysisRate)
		require.NoError(t, err)

		points := NewTracker(0, 0).Track(buf)
		require.NotEmpty(t, points)
		for _, p := range points {
			assert.False(t, p.Voiced, "silent frame at %.3fs should be unvoiced", p.Time)
		}
	})

	t.Run("TimesIncrease", func(t *testing.T) {
		buf := sineBuffer(t, 220.0, 0.5, 0.5)
		points := NewTracker(0, 0).Track(buf)
		for i := 1; i < len(points); i++ {
			assert.Greater(t, points[i].Time, points[i-1].Time)
		}
	})
}

func TestDominantWindow(t *testing.T) {
	contour := []Point{
		{Time: 0.00, Frequency: 440, Voiced: true},
		{Time: 0.02, Frequency: 440, Voiced: true},
		{Time: 0.04, Frequency: 523.25, Voiced: true},
		{Time: 0.06, Voiced: false},
		{Time: 0.08, Frequency: 440, Voiced: true},
	}

	t.Run("MostFrequentWins", func(t *testing.T) {
		freq, ok := DominantWindow(contour, 0, 0.1)
		require.True(t, ok)
		name, _ := NameForFrequency(freq)
		assert.Equal(t, "A4", name)
	})

	t.Run("UnvoicedWindow", func(t *testing.T) {
		_, ok := DominantWindow(contour, 0.055, 0.07)
		assert.False(t, ok)
	})

	t.Run("EmptyRange", func(t *testing.T) {
		_, ok := DominantWindow(contour, 5, 6)
		assert.False(t, ok)
	})
}
