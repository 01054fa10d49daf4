// Package dsp provides the short-time Fourier transform shared by the pitch
// tracker, onset detector and spectrogram sampler.
package dsp

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Default analysis geometry. Frames are implicit window indexes into the
// buffer; they are never materialized beyond the loop below.
const (
	DefaultFrameSize = 2048
	DefaultHopSize   = 512
)

// Spectrogram is a magnitude time-frequency grid: Mag[frame][bin].
type Spectrogram struct {
	Mag        [][]float64
	FrameSize  int
	HopSize    int
	SampleRate int
}

// STFT computes a Hann-windowed magnitude spectrogram. frameSize must be a
// power of two for the FFT; hopSize controls frame overlap.
func STFT(samples []float64, sampleRate, frameSize, hopSize int) *Spectrogram {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	if frameSize > len(samples) {
		frameSize = prevPowerOfTwo(len(samples))
	}
	if hopSize < 1 {
		hopSize = frameSize / 4
	}

	bins := frameSize/2 + 1
	var mags [][]float64

	frame := make([]float64, frameSize)
	for pos := 0; pos+frameSize <= len(samples); pos += hopSize {
		copy(frame, samples[pos:pos+frameSize])
		window.Apply(frame, window.Hann)

		spectrum := fft.FFTReal(frame)
		mag := make([]float64, bins)
		for i := 0; i < bins; i++ {
			re := real(spectrum[i])
			im := imag(spectrum[i])
			mag[i] = math.Sqrt(re*re + im*im)
		}
		mags = append(mags, mag)
	}

	return &Spectrogram{
		Mag:        mags,
		FrameSize:  frameSize,
		HopSize:    hopSize,
		SampleRate: sampleRate,
	}
}

// NumFrames returns the frame count.
func (s *Spectrogram) NumFrames() int { return len(s.Mag) }

// NumBins returns the number of frequency bins per frame.
func (s *Spectrogram) NumBins() int {
	if len(s.Mag) == 0 {
		return 0
	}
	return len(s.Mag[0])
}

// FrameTime returns the center time of frame i in seconds. Center times
// keep onset and pitch timestamps aligned with where the energy actually
// sits inside the window.
func (s *Spectrogram) FrameTime(i int) float64 {
	return float64(i*s.HopSize+s.FrameSize/2) / float64(s.SampleRate)
}

// BinFrequency returns the center frequency of bin k in Hz.
func (s *Spectrogram) BinFrequency(k int) float64 {
	return float64(k) * float64(s.SampleRate) / float64(s.FrameSize)
}

// Nyquist returns the highest representable frequency.
func (s *Spectrogram) Nyquist() float64 {
	return float64(s.SampleRate) / 2
}

// AmplitudeToDB converts a magnitude to decibels relative to ref, floored
// at -80 dB the way display spectrograms conventionally are.
func AmplitudeToDB(mag, ref float64) float64 {
	const floorDB = -80.0
	if ref <= 0 {
		ref = 1
	}
	if mag <= 0 {
		return floorDB
	}
	db := 20 * math.Log10(mag/ref)
	if db < floorDB {
		return floorDB
	}
	return db
}

func prevPowerOfTwo(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
