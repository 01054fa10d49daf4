// Package analyzer runs the full transcription pipeline over one immutable
// audio buffer: pitch tracking and onset detection (concurrently, both
// read-only), then tempo estimation, note segmentation, duration
// quantization, score serialization and visualization sampling.
//
// Each invocation is pure and self-contained, so any number of buffers can
// be analyzed in parallel without locking. An invocation either completes
// every stage or fails at the first violated precondition; partial results
// are never returned.
package analyzer

import (
	"context"
	"sync"

	"github.com/FunctionalFactory/music-assistant-v2/internal/audio"
	"github.com/FunctionalFactory/music-assistant-v2/internal/dsp"
	apperrors "github.com/FunctionalFactory/music-assistant-v2/internal/errors"
	"github.com/FunctionalFactory/music-assistant-v2/internal/musicxml"
	"github.com/FunctionalFactory/music-assistant-v2/internal/notes"
	"github.com/FunctionalFactory/music-assistant-v2/internal/onset"
	"github.com/FunctionalFactory/music-assistant-v2/internal/pitch"
	"github.com/FunctionalFactory/music-assistant-v2/internal/quantize"
	"github.com/FunctionalFactory/music-assistant-v2/internal/tempo"
	"github.com/FunctionalFactory/music-assistant-v2/internal/visualize"
)

// Params configures one analysis invocation. Zero values select defaults
// where noted; out-of-range values are rejected before any computation.
type Params struct {
	// Delta is the required onset peak prominence, in [0.01, 1.0].
	Delta float64
	// Wait is the minimum separation between onsets in seconds, in [0.01, 0.5].
	Wait float64
	// BPM pins the tempo instead of estimating it. 0 means auto.
	BPM float64
	// FrameSize and HopSize set the analysis geometry. 0 means default.
	FrameSize int
	HopSize   int
	// MaxWaveformPoints caps the visualization waveform. 0 means default.
	MaxWaveformPoints int
	// GridWidth and GridHeight size the spectrogram image. 0 means default.
	GridWidth  int
	GridHeight int
	// Title names the emitted score.
	Title string
}

// DefaultParams returns the tuned defaults used by both the CLI and the
// HTTP API.
func DefaultParams() Params {
	return Params{
		Delta:             0.14,
		Wait:              0.03,
		FrameSize:         dsp.DefaultFrameSize,
		HopSize:           dsp.DefaultHopSize,
		MaxWaveformPoints: visualize.DefaultMaxWaveformPoints,
		GridWidth:         visualize.DefaultGridWidth,
		GridHeight:        visualize.DefaultGridHeight,
		Title:             "Audio Analysis Result",
	}
}

// Validate range-checks every parameter once at the boundary.
func (p *Params) Validate() error {
	if p.Delta < onset.MinDelta || p.Delta > onset.MaxDelta {
		return apperrors.NewConfigError("delta", p.Delta, onset.MinDelta, onset.MaxDelta)
	}
	if p.Wait < onset.MinWait || p.Wait > onset.MaxWait {
		return apperrors.NewConfigError("wait", p.Wait, onset.MinWait, onset.MaxWait)
	}
	if p.BPM < 0 {
		return apperrors.NewConfigError("bpm", p.BPM, 0, 400)
	}
	if p.BPM > 400 {
		return apperrors.NewConfigError("bpm", p.BPM, 0, 400)
	}
	if p.HopSize < 0 {
		return apperrors.NewConfigError("frame_hop", float64(p.HopSize), 1, float64(p.FrameSize))
	}
	if p.MaxWaveformPoints < 0 {
		return apperrors.NewConfigError("max_waveform_points", float64(p.MaxWaveformPoints), 1, 1<<20)
	}
	if p.GridWidth < 0 || p.GridHeight < 0 {
		return apperrors.NewConfigError("spectrogram_grid", float64(p.GridWidth), 1, 4096)
	}
	return nil
}

// Analyze runs every pipeline stage and returns the complete result. The
// context is observed at stage boundaries; cancelling abandons the
// invocation without corrupting anything, since all intermediates are
// owned by this call.
func Analyze(ctx context.Context, buf *audio.Buffer, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.FrameSize <= 0 {
		params.FrameSize = dsp.DefaultFrameSize
	}
	if params.HopSize <= 0 {
		params.HopSize = dsp.DefaultHopSize
	}

	// One STFT feeds pitch tracking, onset detection and the spectrogram
	// image; all three only read it.
	spec := dsp.STFT(buf.Samples(), buf.SampleRate(), params.FrameSize, params.HopSize)

	detector, err := onset.NewDetector(params.Delta, params.Wait, params.FrameSize, params.HopSize)
	if err != nil {
		return nil, err
	}
	tracker := pitch.NewTracker(params.FrameSize, params.HopSize)

	var (
		contour []pitch.Point
		onsets  []float64
		wg      sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		contour = tracker.FromSpectrogram(spec)
	}()
	go func() {
		defer wg.Done()
		onsets = detector.FromSpectrogram(spec)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var curve *tempo.Curve
	if params.BPM > 0 {
		curve = tempo.Fixed(params.BPM)
	} else {
		framesPerSec := float64(buf.SampleRate()) / float64(spec.HopSize)
		curve = tempo.Estimate(onset.Strength(spec), framesPerSec, onsets)
	}

	segmenter := notes.NewSegmenter(0, 0)
	events := segmenter.Segment(contour, onsets, buf.Duration())
	quantized := quantize.Quantize(events, curve)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	score, err := musicxml.Emit(params.Title, quantized, curve.GlobalBPM)
	if err != nil {
		return nil, err
	}

	waveform := visualize.SampleWaveform(buf, params.MaxWaveformPoints)
	grid := visualize.SampleSpectrogram(spec, params.GridWidth, params.GridHeight)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return newResult(buf, params, contour, onsets, events, quantized, curve, waveform, grid, score), nil
}
