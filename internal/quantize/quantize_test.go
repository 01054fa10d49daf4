package quantize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FunctionalFactory/music-assistant-v2/internal/notes"
	"github.com/FunctionalFactory/music-assistant-v2/internal/tempo"
)

func TestNearestClass(t *testing.T) {
	cases := []struct {
		name  string
		beats float64
		want  Class
	}{
		{"ExactQuarter", 1.0, Quarter},
		{"ExactHalf", 2.0, Half},
		{"ExactWhole", 4.0, Whole},
		{"ExactEighth", 0.5, Eighth},
		{"ExactTripletEighth", 1.0 / 3.0, TripletEighth},
		{"NearQuarter", 0.93, Quarter},
		{"NearDottedEighth", 0.71, DottedEighth},
		// 0.35 sits between triplet-eighth (1/3) and sixteenth (0.25) on a
		// linear scale but is closer to 1/3 in log space.
		{"LogSpaceTripletEighth", 0.35, TripletEighth},
		{"BelowShortest", 0.05, TripletSixteenth},
		{"Zero", 0, TripletSixteenth},
		{"AboveLongest", 9.0, Whole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NearestClass(tc.beats))
		})
	}
}

func TestClassBeats(t *testing.T) {
	assert.Equal(t, 1.0, Quarter.Beats())
	assert.Equal(t, 1.5, DottedQuarter.Beats())
	assert.InDelta(t, 1.0/6.0, TripletSixteenth.Beats(), 1e-12)
	assert.Zero(t, Class("unknown").Beats())
}

func TestQuantize(t *testing.T) {
	t.Run("GlobalTempo", func(t *testing.T) {
		// 120 BPM: one beat per half second.
		curve := tempo.Fixed(120)
		events := []notes.Event{
			{Start: 0, RawDuration: 0.5, Frequency: 440, Name: "A4", Voiced: true},
			{Start: 0.5, RawDuration: 0.25, Frequency: 523.25, Name: "C5", Voiced: true},
			{Start: 0.75, RawDuration: 1.0},
		}

		out := Quantize(events, curve)
		require.Len(t, out, 3)

		assert.Equal(t, Quarter, out[0].Class)
		assert.Equal(t, 0.0, out[0].StartBeat)
		assert.Equal(t, "A4", out[0].Name)
		assert.False(t, out[0].Rest)

		assert.Equal(t, Eighth, out[1].Class)
		assert.InDelta(t, 1.0, out[1].StartBeat, 1e-9)

		assert.Equal(t, Half, out[2].Class)
		assert.True(t, out[2].Rest, "unvoiced events quantize as rests")
	})

	t.Run("LocalTempoApplied", func(t *testing.T) {
		// After t=2 the local tempo drops to 60 BPM, so the same physical
		// duration is worth half as many beats.
		curve := &tempo.Curve{
			GlobalBPM: 120,
			Points:    []tempo.Point{{Time: 2.0, BPM: 60}},
		}
		events := []notes.Event{
			{Start: 0, RawDuration: 0.5, Frequency: 440, Name: "A4", Voiced: true},
			{Start: 3.0, RawDuration: 0.5, Frequency: 440, Name: "A4", Voiced: true},
		}

		out := Quantize(events, curve)
		require.Len(t, out, 2)
		assert.Equal(t, Quarter, out[0].Class)
		assert.Equal(t, Eighth, out[1].Class)
	})

	t.Run("Empty", func(t *testing.T) {
		out := Quantize(nil, tempo.Fixed(120))
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})
}
