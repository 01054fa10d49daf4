// Package pitch estimates the dominant fundamental frequency of a melodic
// line, frame by frame.
package pitch

import (
	"github.com/FunctionalFactory/music-assistant-v2/internal/audio"
	"github.com/FunctionalFactory/music-assistant-v2/internal/dsp"
)

// Supported fundamental range. Frames whose peak falls outside yield an
// unvoiced point instead of an extrapolated note name.
const (
	MinFrequency = 16.35
	MaxFrequency = 8000.0
)

// noiseFloor is the minimum peak magnitude for a frame to count as voiced.
// Below it the frame is treated as silence or noise.
const noiseFloor = 1e-3

// Point is one pitch estimate: a frame time plus either a voiced frequency
// or nothing. The Voiced flag is the single source of truth; Frequency is
// meaningless when it is false.
type Point struct {
	Time      float64
	Frequency float64
	Voiced    bool
}

// Tracker extracts a pitch contour from an audio buffer.
type Tracker struct {
	frameSize int
	hopSize   int
}

// NewTracker creates a tracker with the given hop length. frameSize <= 0
// selects the default analysis frame.
func NewTracker(frameSize, hopSize int) *Tracker {
	if frameSize <= 0 {
		frameSize = dsp.DefaultFrameSize
	}
	if hopSize <= 0 {
		hopSize = dsp.DefaultHopSize
	}
	return &Tracker{frameSize: frameSize, hopSize: hopSize}
}

// Track produces one Point per analysis frame covering the whole buffer.
// It never fails on a valid buffer; an all-silent input yields a contour
// of unvoiced points.
func (t *Tracker) Track(buf *audio.Buffer) []Point {
	spec := dsp.STFT(buf.Samples(), buf.SampleRate(), t.frameSize, t.hopSize)
	return t.fromSpectrogram(spec)
}

// FromSpectrogram extracts the contour from a precomputed spectrogram, so
// callers that already ran the STFT can reuse it.
func (t *Tracker) FromSpectrogram(spec *dsp.Spectrogram) []Point {
	return t.fromSpectrogram(spec)
}

func (t *Tracker) fromSpectrogram(spec *dsp.Spectrogram) []Point {
	points := make([]Point, 0, spec.NumFrames())

	for i := 0; i < spec.NumFrames(); i++ {
		pt := Point{Time: spec.FrameTime(i)}

		bin, mag := peakBin(spec.Mag[i])
		if mag >= noiseFloor {
			freq := refineFrequency(spec, i, bin)
			if freq >= MinFrequency && freq <= MaxFrequency {
				pt.Frequency = freq
				pt.Voiced = true
			}
		}
		points = append(points, pt)
	}
	return points
}

// DominantWindow returns the most frequent voiced note in points whose time
// lies in [start, end), along with a representative frequency. ok is false
// when the window is entirely unvoiced.
func DominantWindow(points []Point, start, end float64) (freq float64, ok bool) {
	counts := make(map[string]int)
	freqs := make(map[string]float64)

	for _, p := range points {
		if p.Time < start || p.Time >= end || !p.Voiced {
			continue
		}
		name, valid := NameForFrequency(p.Frequency)
		if !valid {
			continue
		}
		counts[name]++
		// Keep the first frequency seen per note for determinism.
		if _, seen := freqs[name]; !seen {
			freqs[name] = p.Frequency
		}
	}

	best := ""
	for name, c := range counts {
		if best == "" || c > counts[best] || (c == counts[best] && name < best) {
			best = name
		}
	}
	if best == "" {
		return 0, false
	}
	return freqs[best], true
}

func peakBin(mag []float64) (int, float64) {
	bestBin, bestMag := 0, 0.0
	for k, m := range mag {
		if m > bestMag {
			bestMag = m
			bestBin = k
		}
	}
	return bestBin, bestMag
}

// refineFrequency applies parabolic interpolation around the peak bin to
// recover sub-bin frequency resolution.
func refineFrequency(spec *dsp.Spectrogram, frame, bin int) float64 {
	mag := spec.Mag[frame]
	if bin <= 0 || bin >= len(mag)-1 {
		return spec.BinFrequency(bin)
	}
	alpha, beta, gamma := mag[bin-1], mag[bin], mag[bin+1]
	denom := alpha - 2*beta + gamma
	if denom == 0 {
		return spec.BinFrequency(bin)
	}
	delta := 0.5 * (alpha - gamma) / denom
	if delta > 0.5 {
		delta = 0.5
	} else if delta < -0.5 {
		delta = -0.5
	}
	return spec.BinFrequency(bin) + delta*float64(spec.SampleRate)/float64(spec.FrameSize)
}
