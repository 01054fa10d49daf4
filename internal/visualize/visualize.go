// Package visualize produces fixed-size display arrays from the raw
// waveform and its spectrogram. It is independent of transcription and
// never feeds back into it.
package visualize

import (
	"github.com/FunctionalFactory/music-assistant-v2/internal/audio"
	"github.com/FunctionalFactory/music-assistant-v2/internal/dsp"
)

// Default display caps.
const (
	DefaultMaxWaveformPoints = 2000
	DefaultGridWidth         = 100
	DefaultGridHeight        = 100
)

// Waveform is a downsampled amplitude trace with its matching time axis.
// len(Data) == len(Times) always holds.
type Waveform struct {
	Data  []float64 `json:"data"`
	Times []float64 `json:"times"`
}

// SpectrogramGrid is a decibel-scaled magnitude image with paired axes.
// Grid[y][x] covers FreqAxis[y] at TimeAxis[x]; the frequency axis spans
// 0..Nyquist.
type SpectrogramGrid struct {
	Grid     [][]float64 `json:"grid"`
	TimeAxis []float64   `json:"time_axis"`
	FreqAxis []float64   `json:"freq_axis"`
}

// SampleWaveform stride-decimates the buffer to at most maxPoints samples.
// Output is deterministic for a given buffer and cap.
func SampleWaveform(buf *audio.Buffer, maxPoints int) *Waveform {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxWaveformPoints
	}
	samples := buf.Samples()

	step := 1
	if len(samples) > maxPoints {
		step = len(samples) / maxPoints
	}

	data := make([]float64, 0, maxPoints)
	for i := 0; i < len(samples) && len(data) < maxPoints; i += step {
		data = append(data, samples[i])
	}

	timeStep := buf.Duration() / float64(len(data))
	times := make([]float64, len(data))
	for i := range times {
		times[i] = float64(i) * timeStep
	}

	return &Waveform{Data: data, Times: times}
}

// SampleSpectrogram converts a magnitude spectrogram to decibels and
// bucket-averages it down to a width x height grid with matching axes.
func SampleSpectrogram(spec *dsp.Spectrogram, width, height int) *SpectrogramGrid {
	if width <= 0 {
		width = DefaultGridWidth
	}
	if height <= 0 {
		height = DefaultGridHeight
	}

	frames := spec.NumFrames()
	bins := spec.NumBins()
	if frames == 0 || bins == 0 {
		return &SpectrogramGrid{Grid: [][]float64{}, TimeAxis: []float64{}, FreqAxis: []float64{}}
	}
	if width > frames {
		width = frames
	}
	if height > bins {
		height = bins
	}

	ref := maxMagnitude(spec)

	grid := make([][]float64, height)
	for y := 0; y < height; y++ {
		binLo := y * bins / height
		binHi := (y + 1) * bins / height

		row := make([]float64, width)
		for x := 0; x < width; x++ {
			frameLo := x * frames / width
			frameHi := (x + 1) * frames / width

			var sum float64
			var count int
			for f := frameLo; f < frameHi; f++ {
				for b := binLo; b < binHi; b++ {
					sum += spec.Mag[f][b]
					count++
				}
			}
			var avg float64
			if count > 0 {
				avg = sum / float64(count)
			}
			row[x] = dsp.AmplitudeToDB(avg, ref)
		}
		grid[y] = row
	}

	timeAxis := make([]float64, width)
	for x := range timeAxis {
		timeAxis[x] = spec.FrameTime(x * frames / width)
	}
	freqAxis := make([]float64, height)
	for y := range freqAxis {
		freqAxis[y] = float64(y) * spec.Nyquist() / float64(height)
	}

	return &SpectrogramGrid{Grid: grid, TimeAxis: timeAxis, FreqAxis: freqAxis}
}

func maxMagnitude(spec *dsp.Spectrogram) float64 {
	max := 0.0
	for _, frame := range spec.Mag {
		for _, m := range frame {
			if m > max {
				max = m
			}
		}
	}
	return max
}
