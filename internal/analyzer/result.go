package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/FunctionalFactory/music-assistant-v2/internal/audio"
	"github.com/FunctionalFactory/music-assistant-v2/internal/notes"
	"github.com/FunctionalFactory/music-assistant-v2/internal/pitch"
	"github.com/FunctionalFactory/music-assistant-v2/internal/quantize"
	"github.com/FunctionalFactory/music-assistant-v2/internal/tempo"
	"github.com/FunctionalFactory/music-assistant-v2/internal/visualize"
)

// Result is the complete output of one analysis invocation. Every field is
// frozen once the invocation returns.
type Result struct {
	Waveform     *visualize.Waveform        `json:"waveform"`
	PitchContour []ContourPoint             `json:"pitch_contour"`
	Onsets       []float64                  `json:"onsets"`
	Spectrogram  *visualize.SpectrogramGrid `json:"spectrogram"`
	Notes        []NoteJSON                 `json:"notes"`
	Rhythm       RhythmInfo                 `json:"rhythm"`
	Metadata     Metadata                   `json:"metadata"`

	// MusicXML carries the serialized score; it is stored and downloaded
	// separately, not embedded in the JSON body.
	MusicXML string `json:"-"`
}

// ContourPoint serializes as a [time, frequency] pair, with null frequency
// for unvoiced frames.
type ContourPoint struct {
	Time      float64
	Frequency float64
	Voiced    bool
}

// MarshalJSON emits [time, frequency|null].
func (c ContourPoint) MarshalJSON() ([]byte, error) {
	if !c.Voiced {
		return []byte(fmt.Sprintf("[%s,null]", formatFloat(c.Time))), nil
	}
	return []byte(fmt.Sprintf("[%s,%s]", formatFloat(c.Time), formatFloat(c.Frequency))), nil
}

// UnmarshalJSON accepts the same pair form.
func (c *ContourPoint) UnmarshalJSON(data []byte) error {
	var pair [2]*float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if pair[0] != nil {
		c.Time = *pair[0]
	}
	if pair[1] != nil {
		c.Frequency = *pair[1]
		c.Voiced = true
	}
	return nil
}

// NoteJSON is one transcribed note in the response body.
type NoteJSON struct {
	StartTime     float64 `json:"start_time"`
	StartBeat     float64 `json:"start_beat"`
	PitchName     string  `json:"pitch_name,omitempty"`
	FrequencyHz   float64 `json:"frequency_hz,omitempty"`
	MIDINote      int     `json:"midi_note,omitempty"`
	Rest          bool    `json:"rest,omitempty"`
	RawDuration   float64 `json:"raw_duration"`
	DurationClass string  `json:"duration_class"`
}

// RhythmInfo reports the estimated tempo context.
type RhythmInfo struct {
	BPM        float64       `json:"bpm"`
	TempoCurve []tempo.Point `json:"tempo_curve"`
}

// Metadata echoes the effective analysis settings.
type Metadata struct {
	SampleRate int     `json:"sample_rate"`
	Duration   float64 `json:"duration"`
	Delta      float64 `json:"delta"`
	Wait       float64 `json:"wait"`
}

func newResult(
	buf *audio.Buffer,
	params Params,
	contour []pitch.Point,
	onsets []float64,
	events []notes.Event,
	quantized []quantize.Note,
	curve *tempo.Curve,
	waveform *visualize.Waveform,
	grid *visualize.SpectrogramGrid,
	score string,
) *Result {
	contourJSON := make([]ContourPoint, len(contour))
	for i, p := range contour {
		contourJSON[i] = ContourPoint{Time: p.Time, Frequency: p.Frequency, Voiced: p.Voiced}
	}

	if onsets == nil {
		onsets = []float64{}
	}

	noteJSON := make([]NoteJSON, len(quantized))
	for i, qn := range quantized {
		noteJSON[i] = NoteJSON{
			StartTime:     events[i].Start,
			StartBeat:     qn.StartBeat,
			PitchName:     qn.Name,
			FrequencyHz:   qn.Frequency,
			Rest:          qn.Rest,
			RawDuration:   events[i].RawDuration,
			DurationClass: string(qn.Class),
		}
		if !qn.Rest {
			if midi, ok := pitch.MIDIForFrequency(qn.Frequency); ok {
				noteJSON[i].MIDINote = midi
			}
		}
	}

	curvePoints := curve.Points
	if curvePoints == nil {
		curvePoints = []tempo.Point{}
	}

	return &Result{
		Waveform:     waveform,
		PitchContour: contourJSON,
		Onsets:       onsets,
		Spectrogram:  grid,
		Notes:        noteJSON,
		Rhythm:       RhythmInfo{BPM: curve.GlobalBPM, TempoCurve: curvePoints},
		Metadata: Metadata{
			SampleRate: buf.SampleRate(),
			Duration:   buf.Duration(),
			Delta:      params.Delta,
			Wait:       params.Wait,
		},
		MusicXML: score,
	}
}

func formatFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
