package musicxml

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FunctionalFactory/music-assistant-v2/internal/quantize"
)

func testNotes() []quantize.Note {
	return []quantize.Note{
		{Name: "A4", Frequency: 440, Class: quantize.Quarter},
		{Name: "C5", Frequency: 523.25, Class: quantize.Half},
		{Rest: true, Class: quantize.Quarter},
		{Name: "F#4", Frequency: 369.99, Class: quantize.Eighth},
	}
}

func TestEmit(t *testing.T) {
	out, err := Emit("Test Title", testNotes(), 120)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, "<score-partwise version=\"3.1\">")
	assert.Contains(t, out, "<work-title>Test Title</work-title>")
	assert.Contains(t, out, "<creator type=\"software\">Music Assistant v2</creator>")
	assert.Contains(t, out, "<software>Music Assistant v2</software>")
	assert.Contains(t, out, "<sound tempo=\"120\"></sound>")

	// Round-trip through the same structs to assert structure, not layout.
	var score scorePartwise
	require.NoError(t, xml.Unmarshal([]byte(out), &score))

	require.Len(t, score.Parts, 1)
	assert.Equal(t, "P1", score.Parts[0].ID)
	require.Len(t, score.PartList.ScoreParts, 1)
	assert.Equal(t, "P1", score.PartList.ScoreParts[0].ID)

	measures := score.Parts[0].Measures
	require.NotEmpty(t, measures)

	attrs := measures[0].Attributes
	require.NotNil(t, attrs)
	assert.Equal(t, divisions, attrs.Divisions)
	assert.Equal(t, 4, attrs.Time.Beats)
	assert.Equal(t, 4, attrs.Time.BeatType)
	assert.Equal(t, "G", attrs.Clef.Sign)
	assert.Equal(t, 2, attrs.Clef.Line)

	var total int
	for _, m := range measures {
		total += len(m.Notes)
	}
	assert.Equal(t, len(testNotes()), total, "every note lands in exactly one measure")
}

func TestEmitNoteDetails(t *testing.T) {
	out, err := Emit("x", testNotes(), 90)
	require.NoError(t, err)

	var score scorePartwise
	require.NoError(t, xml.Unmarshal([]byte(out), &score))

	var all []note
	for _, m := range score.Parts[0].Measures {
		all = append(all, m.Notes...)
	}
	require.Len(t, all, 4)

	first := all[0]
	require.NotNil(t, first.Pitch)
	assert.Equal(t, "A", first.Pitch.Step)
	assert.Equal(t, 4, first.Pitch.Octave)
	assert.Equal(t, 0, first.Pitch.Alter)
	assert.Equal(t, divisions, first.Duration)
	assert.Equal(t, "quarter", first.Type)

	assert.Equal(t, 2*divisions, all[1].Duration)
	assert.Equal(t, "half", all[1].Type)

	rest := all[2]
	assert.Nil(t, rest.Pitch)
	assert.NotNil(t, rest.Rest)

	sharp := all[3]
	require.NotNil(t, sharp.Pitch)
	assert.Equal(t, "F", sharp.Pitch.Step)
	assert.Equal(t, 1, sharp.Pitch.Alter)
	assert.Equal(t, "eighth", sharp.Type)
	assert.Equal(t, divisions/2, sharp.Duration)
}

func TestEmitTriplets(t *testing.T) {
	seq := []quantize.Note{
		{Name: "A4", Frequency: 440, Class: quantize.TripletEighth},
		{Name: "A4", Frequency: 440, Class: quantize.DottedQuarter},
	}
	out, err := Emit("x", seq, 120)
	require.NoError(t, err)

	var score scorePartwise
	require.NoError(t, xml.Unmarshal([]byte(out), &score))

	notes := score.Parts[0].Measures[0].Notes
	require.Len(t, notes, 2)

	trip := notes[0]
	require.NotNil(t, trip.TimeModification)
	assert.Equal(t, 3, trip.TimeModification.ActualNotes)
	assert.Equal(t, 2, trip.TimeModification.NormalNotes)
	assert.Equal(t, 4, trip.Duration, "triplet eighth is a third of a quarter")
	assert.Nil(t, trip.Dot)

	dotted := notes[1]
	assert.NotNil(t, dotted.Dot)
	assert.Equal(t, "quarter", dotted.Type)
	assert.Equal(t, 18, dotted.Duration)
}

func TestEmitMeasurePacking(t *testing.T) {
	// Six quarter notes overflow one 4/4 measure into a second.
	seq := make([]quantize.Note, 6)
	for i := range seq {
		seq[i] = quantize.Note{Name: "A4", Frequency: 440, Class: quantize.Quarter}
	}
	out, err := Emit("x", seq, 120)
	require.NoError(t, err)

	var score scorePartwise
	require.NoError(t, xml.Unmarshal([]byte(out), &score))

	measures := score.Parts[0].Measures
	require.Len(t, measures, 2)
	assert.Equal(t, 1, measures[0].Number)
	assert.Equal(t, 2, measures[1].Number)
	assert.Len(t, measures[0].Notes, 4)
	assert.Len(t, measures[1].Notes, 2)
	assert.Nil(t, measures[1].Attributes, "attributes only appear once")
}

func TestEmitEmptySequence(t *testing.T) {
	out, err := Emit("Empty", nil, 120)
	require.NoError(t, err)

	var score scorePartwise
	require.NoError(t, xml.Unmarshal([]byte(out), &score))
	require.Len(t, score.Parts[0].Measures, 1)
	assert.Empty(t, score.Parts[0].Measures[0].Notes)
}
