// Package onset locates note starts from frame-to-frame spectral change.
package onset

import (
	"math"

	"github.com/FunctionalFactory/music-assistant-v2/internal/audio"
	"github.com/FunctionalFactory/music-assistant-v2/internal/dsp"
	apperrors "github.com/FunctionalFactory/music-assistant-v2/internal/errors"
)

// Allowed sensitivity ranges. Values outside are rejected, not clamped.
const (
	MinDelta = 0.01
	MaxDelta = 1.0
	MinWait  = 0.01
	MaxWait  = 0.5
)

// Peak-picking neighborhood in seconds, matching the envelope windows the
// detector was tuned with.
const (
	preMaxSec  = 0.03
	postMaxSec = 0.01
	preAvgSec  = 0.10
	postAvgSec = 0.10
)

// Detector selects onset times from an onset-strength envelope.
//
// delta is the required prominence of a peak over its local mean on the
// normalized envelope; wait is the minimum separation between accepted
// onsets in seconds. Higher delta means fewer onsets, never more.
type Detector struct {
	delta     float64
	wait      float64
	frameSize int
	hopSize   int
}

// NewDetector validates the sensitivity parameters and builds a detector.
func NewDetector(delta, wait float64, frameSize, hopSize int) (*Detector, error) {
	if delta < MinDelta || delta > MaxDelta {
		return nil, apperrors.NewConfigError("delta", delta, MinDelta, MaxDelta)
	}
	if wait < MinWait || wait > MaxWait {
		return nil, apperrors.NewConfigError("wait", wait, MinWait, MaxWait)
	}
	if frameSize <= 0 {
		frameSize = dsp.DefaultFrameSize
	}
	if hopSize <= 0 {
		hopSize = dsp.DefaultHopSize
	}
	return &Detector{delta: delta, wait: wait, frameSize: frameSize, hopSize: hopSize}, nil
}

// Detect returns strictly increasing onset times in seconds. An empty
// result is a valid outcome for constant or silent input.
func (d *Detector) Detect(buf *audio.Buffer) []float64 {
	spec := dsp.STFT(buf.Samples(), buf.SampleRate(), d.frameSize, d.hopSize)
	return d.FromSpectrogram(spec)
}

// FromSpectrogram runs detection on a precomputed spectrogram.
func (d *Detector) FromSpectrogram(spec *dsp.Spectrogram) []float64 {
	envelope := Strength(spec)
	frames := d.pickPeaks(envelope, spec)

	times := make([]float64, 0, len(frames))
	for _, f := range frames {
		times = append(times, spec.FrameTime(f))
	}
	return times
}

// Strength computes the half-wave-rectified spectral flux envelope,
// normalized to [0, 1]: per frame, the sum of positive per-bin magnitude
// increases since the previous frame. Sustained energy and pure decay
// contribute nothing, which is what rejects vibrato ripple as onsets.
func Strength(spec *dsp.Spectrogram) []float64 {
	n := spec.NumFrames()
	env := make([]float64, n)
	if n < 2 {
		return env
	}

	max := 0.0
	for t := 1; t < n; t++ {
		var flux float64
		prev, cur := spec.Mag[t-1], spec.Mag[t]
		for k := range cur {
			if diff := cur[k] - prev[k]; diff > 0 {
				flux += diff
			}
		}
		env[t] = flux
		if flux > max {
			max = flux
		}
	}

	if max > 0 {
		for t := range env {
			env[t] /= max
		}
	}
	return env
}

// pickPeaks selects envelope frames that are local maxima, exceed their
// neighborhood mean by delta, and sit at least `wait` seconds after the
// previously accepted onset. Within one wait window the earlier peak wins
// and later candidates are discarded.
func (d *Detector) pickPeaks(env []float64, spec *dsp.Spectrogram) []int {
	framesPerSec := float64(spec.SampleRate) / float64(spec.HopSize)
	preMax := atLeastOne(preMaxSec * framesPerSec)
	postMax := atLeastOne(postMaxSec * framesPerSec)
	preAvg := atLeastOne(preAvgSec * framesPerSec)
	postAvg := atLeastOne(postAvgSec * framesPerSec)
	waitFrames := atLeastOne(d.wait * framesPerSec)

	var peaks []int
	lastAccepted := -waitFrames - 1

	for i := range env {
		if env[i] <= 0 {
			continue
		}
		if env[i] < windowMax(env, i-preMax, i+postMax) {
			continue
		}
		if env[i] < windowMean(env, i-preAvg, i+postAvg)+d.delta {
			continue
		}
		if i-lastAccepted <= waitFrames {
			continue
		}
		peaks = append(peaks, i)
		lastAccepted = i
	}
	return peaks
}

func windowMax(env []float64, lo, hi int) float64 {
	lo, hi = clampRange(lo, hi, len(env))
	m := math.Inf(-1)
	for i := lo; i <= hi; i++ {
		if env[i] > m {
			m = env[i]
		}
	}
	return m
}

func windowMean(env []float64, lo, hi int) float64 {
	lo, hi = clampRange(lo, hi, len(env))
	var sum float64
	for i := lo; i <= hi; i++ {
		sum += env[i]
	}
	return sum / float64(hi-lo+1)
}

func clampRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

func atLeastOne(v float64) int {
	n := int(v)
	if n < 1 {
		return 1
	}
	return n
}
