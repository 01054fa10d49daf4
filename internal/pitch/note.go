package pitch

import (
	"math"
	"strconv"
)

// referenceC0 anchors twelve-tone equal temperament naming. It is
// A4 (440 Hz) shifted down 4 octaves and 9 semitones: 440 * 2^-4.75.
const referenceC0 = 16.351597831287414

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NameForFrequency maps a frequency to its equal-temperament note name,
// e.g. 261.63 -> "C4", 440 -> "A4". ok is false outside the supported
// range; no name is fabricated for sub-audible or ultrasonic input.
func NameForFrequency(freq float64) (name string, ok bool) {
	if freq < MinFrequency || freq > MaxFrequency {
		return "", false
	}
	h := int(math.Round(12 * math.Log2(freq/referenceC0)))
	if h < 0 {
		return "", false
	}
	octave := h / 12
	return noteNames[h%12] + strconv.Itoa(octave), true
}

// MIDIForFrequency converts a frequency to the nearest MIDI note number
// (A4 = 440 Hz = 69). ok mirrors NameForFrequency's range check.
func MIDIForFrequency(freq float64) (midi int, ok bool) {
	if freq < MinFrequency || freq > MaxFrequency {
		return 0, false
	}
	return int(math.Round(69 + 12*math.Log2(freq/440.0))), true
}

// NoteParts splits a frequency into step, chromatic alteration and octave
// for score serialization. alter is 1 for sharpened steps.
func NoteParts(freq float64) (step string, alter int, octave int, ok bool) {
	if freq < MinFrequency || freq > MaxFrequency {
		return "", 0, 0, false
	}
	h := int(math.Round(12 * math.Log2(freq/referenceC0)))
	if h < 0 {
		return "", 0, 0, false
	}
	name := noteNames[h%12]
	octave = h / 12
	if len(name) == 2 {
		return name[:1], 1, octave, true
	}
	return name, 0, octave, true
}
