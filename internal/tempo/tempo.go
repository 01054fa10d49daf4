// Package tempo derives a global tempo and a local tempo curve from the
// onset-strength envelope and detected onset times.
package tempo

import (
	"math"
	"sort"
)

// DefaultBPM is the fallback when no stable periodicity can be found in
// the input (too short, silent, or highly irregular).
const DefaultBPM = 120.0

// Searchable tempo range for autocorrelation.
const (
	minBPM = 40.0
	maxBPM = 240.0
)

// windowIntervals is the number of neighboring inter-onset intervals
// blended into each local tempo estimate.
const windowIntervals = 4

// Point is one sample of the local tempo curve.
type Point struct {
	Time float64 `json:"time"`
	BPM  float64 `json:"bpm"`
}

// Curve is a global tempo plus time-varying local estimates. Consumers
// quantizing a note near time t should use LocalAt(t), not the global
// average, so expressive slow-downs keep their note values.
type Curve struct {
	GlobalBPM float64 `json:"global_bpm"`
	Points    []Point `json:"points"`
}

// Estimate computes the tempo curve. envelope is the onset-strength
// envelope sampled at framesPerSec; onsets are detected onset times.
// A pinned tempo (manual BPM override) is expressed by the caller simply
// not calling Estimate.
func Estimate(envelope []float64, framesPerSec float64, onsets []float64) *Curve {
	global := globalFromEnvelope(envelope, framesPerSec)
	if global == 0 {
		global = globalFromIntervals(onsets)
	}
	if global == 0 {
		global = DefaultBPM
	}

	return &Curve{
		GlobalBPM: global,
		Points:    localCurve(onsets, global),
	}
}

// Fixed builds a curve pinned to a caller-supplied tempo, bypassing
// estimation entirely.
func Fixed(bpm float64) *Curve {
	return &Curve{GlobalBPM: bpm}
}

// LocalAt returns the tempo active at time t: the nearest curve point at
// or before t, or the global tempo when the curve is empty or t precedes
// the first point.
func (c *Curve) LocalAt(t float64) float64 {
	bpm := c.GlobalBPM
	for _, p := range c.Points {
		if p.Time > t {
			break
		}
		bpm = p.BPM
	}
	return bpm
}

// globalFromEnvelope finds the most consistent recurring interval by
// autocorrelating the onset envelope over the searchable BPM range.
func globalFromEnvelope(env []float64, framesPerSec float64) float64 {
	if len(env) == 0 || framesPerSec <= 0 {
		return 0
	}

	minLag := int(framesPerSec * 60.0 / maxBPM)
	maxLag := int(framesPerSec * 60.0 / minBPM)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}
	if maxLag <= minLag {
		return 0
	}

	smoothed := smooth3(env)

	bestLag, bestVal := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i < len(smoothed)-lag; i++ {
			sum += smoothed[i] * smoothed[i+lag]
		}
		score := sum / float64(len(smoothed)-lag)
		// Log-normal prior centered on DefaultBPM, one octave wide, so a
		// strict pulse does not resolve to its half or double tempo.
		oct := math.Log2(60.0 * framesPerSec / float64(lag) / DefaultBPM)
		score *= math.Exp(-0.5 * oct * oct)
		if score > bestVal {
			bestVal = score
			bestLag = lag
		}
	}
	if bestLag == 0 || bestVal == 0 {
		return 0
	}
	return 60.0 * framesPerSec / float64(bestLag)
}

// globalFromIntervals falls back to the median inter-onset interval when
// the envelope carries no usable periodicity.
func globalFromIntervals(onsets []float64) float64 {
	intervals := interOnsetIntervals(onsets)
	if len(intervals) == 0 {
		return 0
	}
	m := median(intervals)
	if m <= 0 {
		return 0
	}
	bpm := 60.0 / m
	for bpm > maxBPM {
		bpm /= 2
	}
	for bpm < minBPM {
		bpm *= 2
	}
	return bpm
}

// localCurve estimates tempo over a sliding window of consecutive
// inter-onset intervals, capturing rubato instead of forcing one grid.
func localCurve(onsets []float64, global float64) []Point {
	intervals := interOnsetIntervals(onsets)
	if len(intervals) < windowIntervals {
		return nil
	}

	points := make([]Point, 0, len(intervals)-windowIntervals+1)
	for i := 0; i+windowIntervals <= len(intervals); i++ {
		window := intervals[i : i+windowIntervals]
		m := median(append([]float64(nil), window...))
		if m <= 0 {
			continue
		}
		bpm := 60.0 / m
		// Fold into the octave closest to the global estimate so a run of
		// eighth notes does not read as a tempo doubling.
		for bpm > global*math.Sqrt2 {
			bpm /= 2
		}
		for bpm < global/math.Sqrt2 {
			bpm *= 2
		}
		points = append(points, Point{Time: onsets[i], BPM: bpm})
	}
	return points
}

// smooth3 applies a 3-point triangular filter so periods that fall between
// integer lags still correlate at the neighboring lags.
func smooth3(env []float64) []float64 {
	out := make([]float64, len(env))
	for i := range env {
		v := env[i]
		if i > 0 {
			v += 0.5 * env[i-1]
		}
		if i+1 < len(env) {
			v += 0.5 * env[i+1]
		}
		out[i] = v
	}
	return out
}

func interOnsetIntervals(onsets []float64) []float64 {
	if len(onsets) < 2 {
		return nil
	}
	intervals := make([]float64, 0, len(onsets)-1)
	for i := 1; i < len(onsets); i++ {
		if d := onsets[i] - onsets[i-1]; d > 0 {
			intervals = append(intervals, d)
		}
	}
	return intervals
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sort.Float64s(v)
	mid := len(v) / 2
	if len(v)%2 == 1 {
		return v[mid]
	}
	return (v[mid-1] + v[mid]) / 2
}
