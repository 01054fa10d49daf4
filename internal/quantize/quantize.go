// Package quantize snaps physical note durations onto standard musical
// note lengths using the tempo active at each note's start.
package quantize

import (
	"math"

	"github.com/FunctionalFactory/music-assistant-v2/internal/notes"
	"github.com/FunctionalFactory/music-assistant-v2/internal/tempo"
)

// Class identifies a standard note length.
type Class string

const (
	Whole            Class = "whole"
	DottedHalf       Class = "dotted-half"
	Half             Class = "half"
	DottedQuarter    Class = "dotted-quarter"
	Quarter          Class = "quarter"
	DottedEighth     Class = "dotted-eighth"
	Eighth           Class = "eighth"
	TripletEighth    Class = "triplet-eighth"
	Sixteenth        Class = "sixteenth"
	TripletSixteenth Class = "triplet-sixteenth"
)

// classBeats enumerates the supported classes in descending beat value.
// Quantization never produces anything outside this table.
var classBeats = []struct {
	Class Class
	Beats float64
}{
	{Whole, 4.0},
	{DottedHalf, 3.0},
	{Half, 2.0},
	{DottedQuarter, 1.5},
	{Quarter, 1.0},
	{DottedEighth, 0.75},
	{Eighth, 0.5},
	{TripletEighth, 1.0 / 3.0},
	{Sixteenth, 0.25},
	{TripletSixteenth, 1.0 / 6.0},
}

// Beats returns the beat value of a duration class.
func (c Class) Beats() float64 {
	for _, cb := range classBeats {
		if cb.Class == c {
			return cb.Beats
		}
	}
	return 0
}

// Note is a note event snapped onto the musical grid: a beat-valued start,
// the pitch carried over from segmentation, and a duration class.
type Note struct {
	StartBeat float64
	Frequency float64
	Name      string
	Rest      bool
	Class     Class
}

// Quantize maps each event's raw duration into beats under the local tempo
// at its start time and snaps it to the nearest duration class.
func Quantize(events []notes.Event, curve *tempo.Curve) []Note {
	out := make([]Note, 0, len(events))
	for _, ev := range events {
		localBPM := curve.LocalAt(ev.Start)
		beats := ev.RawDuration * localBPM / 60.0

		out = append(out, Note{
			StartBeat: ev.Start * localBPM / 60.0,
			Frequency: ev.Frequency,
			Name:      ev.Name,
			Rest:      !ev.Voiced,
			Class:     NearestClass(beats),
		})
	}
	return out
}

// NearestClass snaps a beat count to the closest duration class in
// log-duration space, so an eighth-versus-sixteenth decision is weighted
// proportionally rather than absolutely. Exact ties go to the shorter
// class to avoid inflating perceived rhythmic density.
func NearestClass(beats float64) Class {
	shortest := classBeats[len(classBeats)-1]
	if beats <= shortest.Beats {
		return shortest.Class
	}

	best := shortest.Class
	bestDist := math.Inf(1)
	logBeats := math.Log2(beats)

	// classBeats is ordered longest-first, so a tie overwrites with the
	// shorter class.
	for _, cb := range classBeats {
		dist := math.Abs(logBeats - math.Log2(cb.Beats))
		if dist <= bestDist {
			bestDist = dist
			best = cb.Class
		}
	}
	return best
}
