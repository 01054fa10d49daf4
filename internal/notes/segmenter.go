// Package notes fuses onset times and the pitch contour into discrete
// note events.
package notes

import (
	"github.com/FunctionalFactory/music-assistant-v2/internal/pitch"
)

// Pitch sampling window after each onset. The skip excludes the percussive
// attack transient; the cap keeps long notes from dragging in the next
// note's pitch. Both are tuned constants, not derived values.
const (
	DefaultAttackSkip = 0.05
	DefaultWindowCap  = 0.15
)

// Event is one segmented note. Rest events (Voiced == false) mark onsets
// whose sampling window carried no reliable pitch.
type Event struct {
	Start       float64
	RawDuration float64
	Frequency   float64
	Name        string
	Voiced      bool
}

// Segmenter pairs each onset with the dominant pitch heard just after it.
type Segmenter struct {
	attackSkip float64
	windowCap  float64
}

// NewSegmenter builds a segmenter; non-positive arguments select the
// tuned defaults.
func NewSegmenter(attackSkip, windowCap float64) *Segmenter {
	if attackSkip <= 0 {
		attackSkip = DefaultAttackSkip
	}
	if windowCap <= 0 {
		windowCap = DefaultWindowCap
	}
	return &Segmenter{attackSkip: attackSkip, windowCap: windowCap}
}

// Segment walks adjacent onset pairs in one forward pass. Every onset
// yields exactly one event: the raw duration of note i runs to onset i+1,
// and the final note is bounded by the end of the buffer. An onset at the
// very end still produces a (near-zero duration) event rather than being
// dropped.
func (s *Segmenter) Segment(contour []pitch.Point, onsets []float64, bufferEnd float64) []Event {
	events := make([]Event, 0, len(onsets))

	for i, start := range onsets {
		end := bufferEnd
		if i+1 < len(onsets) {
			end = onsets[i+1]
		}
		duration := end - start
		if duration < 0 {
			duration = 0
		}

		windowStart := start + s.attackSkip
		windowEnd := start + s.windowCap
		if windowEnd > end {
			windowEnd = end
		}

		ev := Event{Start: start, RawDuration: duration}
		if freq, ok := pitch.DominantWindow(contour, windowStart, windowEnd); ok {
			if name, valid := pitch.NameForFrequency(freq); valid {
				ev.Frequency = freq
				ev.Name = name
				ev.Voiced = true
			}
		}
		events = append(events, ev)
	}
	return events
}
