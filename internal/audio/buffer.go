package audio

import (
	"fmt"

	apperrors "github.com/FunctionalFactory/music-assistant-v2/internal/errors"
)

// AnalysisRate is the fixed sample rate all analysis runs at. Input audio
// is resampled to this rate before it reaches the transcription pipeline.
const AnalysisRate = 22050

// MinSamples is the minimum buffer length for analysis: one full FFT frame.
const MinSamples = 2048

// Buffer is an immutable mono waveform plus its sample rate. The pipeline
// never mutates the sample slice after construction.
type Buffer struct {
	samples    []float64
	sampleRate int
}

// New validates and wraps a sample slice. The slice is copied so the caller
// cannot mutate the buffer afterwards.
func New(samples []float64, sampleRate int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", apperrors.ErrUnsupportedInput, sampleRate)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", apperrors.ErrUnsupportedInput)
	}
	if len(samples) < MinSamples {
		return nil, fmt.Errorf("%w: %d samples, need at least %d (%.2fs)",
			apperrors.ErrInsufficientData, len(samples), MinSamples,
			float64(MinSamples)/float64(sampleRate))
	}

	cp := make([]float64, len(samples))
	copy(cp, samples)
	return &Buffer{samples: cp, sampleRate: sampleRate}, nil
}

// Samples returns the underlying sample slice. Callers must treat it as
// read-only; every analysis stage only reads it.
func (b *Buffer) Samples() []float64 { return b.samples }

// SampleRate returns the sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Len returns the number of samples.
func (b *Buffer) Len() int { return len(b.samples) }

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(len(b.samples)) / float64(b.sampleRate)
}

// Resample converts the buffer to the target rate using linear
// interpolation. Returns the receiver unchanged when rates already match.
func (b *Buffer) Resample(targetRate int) (*Buffer, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("%w: target rate %d", apperrors.ErrUnsupportedInput, targetRate)
	}
	if targetRate == b.sampleRate {
		return b, nil
	}

	ratio := float64(b.sampleRate) / float64(targetRate)
	outLen := int(float64(len(b.samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(b.samples)-1 {
			out[i] = b.samples[len(b.samples)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = b.samples[j]*(1-frac) + b.samples[j+1]*frac
	}

	return New(out, targetRate)
}

// MixdownMono averages interleaved multi-channel samples into one channel.
func MixdownMono(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
