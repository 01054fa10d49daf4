// Package musicxml serializes a quantized note sequence into a MusicXML
// (score-partwise) document for external rendering tools. It emits pitch,
// duration and a fixed time signature and tempo marking only; no key or
// chord inference happens here.
package musicxml

import (
	"encoding/xml"
	"fmt"
	"math"

	"github.com/FunctionalFactory/music-assistant-v2/internal/pitch"
	"github.com/FunctionalFactory/music-assistant-v2/internal/quantize"
)

// divisions per quarter note. 12 keeps every supported duration class,
// including triplets, on integer tick counts.
const divisions = 12

// beatsPerMeasure matches the fixed 4/4 time signature.
const beatsPerMeasure = 4.0

const softwareName = "Music Assistant v2"

type scorePartwise struct {
	XMLName        xml.Name       `xml:"score-partwise"`
	Version        string         `xml:"version,attr"`
	Work           work           `xml:"work"`
	Identification identification `xml:"identification"`
	PartList       partList       `xml:"part-list"`
	Parts          []part         `xml:"part"`
}

type work struct {
	Title string `xml:"work-title"`
}

type identification struct {
	Creator  creator  `xml:"creator"`
	Encoding encoding `xml:"encoding"`
}

type creator struct {
	Type string `xml:"type,attr"`
	Name string `xml:",chardata"`
}

type encoding struct {
	Software string `xml:"software"`
}

type partList struct {
	ScoreParts []scorePart `xml:"score-part"`
}

type scorePart struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type part struct {
	ID       string    `xml:"id,attr"`
	Measures []measure `xml:"measure"`
}

type measure struct {
	Number     int         `xml:"number,attr"`
	Attributes *attributes `xml:"attributes,omitempty"`
	Direction  *direction  `xml:"direction,omitempty"`
	Notes      []note      `xml:"note"`
}

type attributes struct {
	Divisions int           `xml:"divisions"`
	Time      timeSignature `xml:"time"`
	Clef      clef          `xml:"clef"`
}

type timeSignature struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type clef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type direction struct {
	Sound sound `xml:"sound"`
}

type sound struct {
	Tempo string `xml:"tempo,attr"`
}

type note struct {
	Pitch            *notePitch        `xml:"pitch,omitempty"`
	Rest             *struct{}         `xml:"rest,omitempty"`
	Duration         int               `xml:"duration"`
	Type             string            `xml:"type"`
	Dot              *struct{}         `xml:"dot,omitempty"`
	TimeModification *timeModification `xml:"time-modification,omitempty"`
}

type notePitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

type timeModification struct {
	ActualNotes int `xml:"actual-notes"`
	NormalNotes int `xml:"normal-notes"`
}

// Emit renders quantized notes, in start order, into a MusicXML string.
// tempoBPM becomes the initial metronome marking.
func Emit(title string, seq []quantize.Note, tempoBPM float64) (string, error) {
	score := scorePartwise{
		Version: "3.1",
		Work:    work{Title: title},
		Identification: identification{
			Creator:  creator{Type: "software", Name: softwareName},
			Encoding: encoding{Software: softwareName},
		},
		PartList: partList{ScoreParts: []scorePart{{ID: "P1", Name: "Melody"}}},
		Parts:    []part{{ID: "P1", Measures: buildMeasures(seq, tempoBPM)}},
	}

	out, err := xml.MarshalIndent(score, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal score: %w", err)
	}
	return xml.Header + string(out), nil
}

// buildMeasures packs notes greedily into 4/4 measures. A note that
// crosses a barline simply opens the next measure; splitting tied notes
// is left to the renderer.
func buildMeasures(seq []quantize.Note, tempoBPM float64) []measure {
	first := measure{
		Number: 1,
		Attributes: &attributes{
			Divisions: divisions,
			Time:      timeSignature{Beats: 4, BeatType: 4},
			Clef:      clef{Sign: "G", Line: 2},
		},
		Direction: &direction{Sound: sound{Tempo: fmt.Sprintf("%g", math.Round(tempoBPM))}},
	}

	measures := []measure{first}
	filled := 0.0

	for _, qn := range seq {
		beats := qn.Class.Beats()
		if filled >= beatsPerMeasure {
			measures = append(measures, measure{Number: len(measures) + 1})
			filled -= beatsPerMeasure
		}
		cur := &measures[len(measures)-1]
		cur.Notes = append(cur.Notes, makeNote(qn))
		filled += beats
	}

	return measures
}

func makeNote(qn quantize.Note) note {
	n := note{
		Duration: int(math.Round(qn.Class.Beats() * divisions)),
	}
	n.Type, n.Dot, n.TimeModification = classNotation(qn.Class)

	if qn.Rest {
		n.Rest = &struct{}{}
		return n
	}

	if step, alter, octave, ok := pitch.NoteParts(qn.Frequency); ok {
		n.Pitch = &notePitch{Step: step, Alter: alter, Octave: octave}
	} else {
		n.Rest = &struct{}{}
	}
	return n
}

// classNotation maps a duration class to its MusicXML note type plus dot
// and tuplet modifiers.
func classNotation(c quantize.Class) (string, *struct{}, *timeModification) {
	dot := &struct{}{}
	triplet := &timeModification{ActualNotes: 3, NormalNotes: 2}

	switch c {
	case quantize.Whole:
		return "whole", nil, nil
	case quantize.DottedHalf:
		return "half", dot, nil
	case quantize.Half:
		return "half", nil, nil
	case quantize.DottedQuarter:
		return "quarter", dot, nil
	case quantize.Quarter:
		return "quarter", nil, nil
	case quantize.DottedEighth:
		return "eighth", dot, nil
	case quantize.Eighth:
		return "eighth", nil, nil
	case quantize.TripletEighth:
		return "eighth", nil, triplet
	case quantize.Sixteenth:
		return "16th", nil, nil
	case quantize.TripletSixteenth:
		return "16th", nil, triplet
	default:
		return "quarter", nil, nil
	}
}
