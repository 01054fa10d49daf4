// Package wav decodes RIFF/WAVE files into analysis buffers. It handles the
// PCM encodings browsers and DAWs actually export: 16/24/32-bit integer and
// 32-bit IEEE float, mono or multi-channel.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/FunctionalFactory/music-assistant-v2/internal/audio"
	apperrors "github.com/FunctionalFactory/music-assistant-v2/internal/errors"
)

const (
	formatPCM       = 1
	formatIEEEFloat = 3
)

// fmtChunkMinSize is the number of bytes decodeSamples needs from a fmt
// chunk; extension fields beyond it are ignored.
const fmtChunkMinSize = 16

// maxChunkSize bounds how much a single declared chunk may allocate.
// Chunk size fields are untrusted input.
const maxChunkSize = 256 << 20

type fmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Decode reads a complete WAV stream and returns a mono buffer resampled to
// the analysis rate.
func Decode(r io.Reader) (*audio.Buffer, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: read RIFF header: %v", apperrors.ErrUnsupportedFormat, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE stream", apperrors.ErrUnsupportedFormat)
	}

	var format *fmtChunk
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: missing data chunk", apperrors.ErrUnsupportedFormat)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < fmtChunkMinSize {
				return nil, fmt.Errorf("%w: fmt chunk of %d bytes", apperrors.ErrUnsupportedFormat, size)
			}
			if size > maxChunkSize {
				return nil, fmt.Errorf("%w: fmt chunk of %d bytes", apperrors.ErrFileTooLarge, size)
			}
			raw := make([]byte, size)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("%w: short fmt chunk", apperrors.ErrUnsupportedFormat)
			}
			fc := &fmtChunk{
				AudioFormat:   binary.LittleEndian.Uint16(raw[0:2]),
				NumChannels:   binary.LittleEndian.Uint16(raw[2:4]),
				SampleRate:    binary.LittleEndian.Uint32(raw[4:8]),
				ByteRate:      binary.LittleEndian.Uint32(raw[8:12]),
				BlockAlign:    binary.LittleEndian.Uint16(raw[12:14]),
				BitsPerSample: binary.LittleEndian.Uint16(raw[14:16]),
			}
			format = fc
		case "data":
			if format == nil {
				return nil, fmt.Errorf("%w: data chunk before fmt", apperrors.ErrUnsupportedFormat)
			}
			if size > maxChunkSize {
				return nil, fmt.Errorf("%w: data chunk of %d bytes", apperrors.ErrFileTooLarge, size)
			}
			raw := make([]byte, size)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("%w: short data chunk", apperrors.ErrUnsupportedFormat)
			}
			return decodeSamples(format, raw)
		default:
			// Skip LIST, fact and other metadata chunks. Chunk sizes are
			// padded to even byte counts.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("%w: truncated %q chunk", apperrors.ErrUnsupportedFormat, id)
			}
		}
	}
}

func decodeSamples(fc *fmtChunk, raw []byte) (*audio.Buffer, error) {
	if fc.NumChannels == 0 || fc.SampleRate == 0 {
		return nil, fmt.Errorf("%w: invalid fmt chunk", apperrors.ErrUnsupportedFormat)
	}

	bytesPerSample := int(fc.BitsPerSample) / 8
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("%w: zero sample width", apperrors.ErrUnsupportedFormat)
	}
	n := len(raw) / bytesPerSample
	interleaved := make([]float64, n)

	switch {
	case fc.AudioFormat == formatPCM && fc.BitsPerSample == 16:
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			interleaved[i] = float64(v) / 32768.0
		}
	case fc.AudioFormat == formatPCM && fc.BitsPerSample == 24:
		for i := 0; i < n; i++ {
			b := raw[i*3 : i*3+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF) // sign extend
			}
			interleaved[i] = float64(v) / 8388608.0
		}
	case fc.AudioFormat == formatPCM && fc.BitsPerSample == 32:
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(raw[i*4:]))
			interleaved[i] = float64(v) / 2147483648.0
		}
	case fc.AudioFormat == formatIEEEFloat && fc.BitsPerSample == 32:
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(raw[i*4:])
			interleaved[i] = float64(math.Float32frombits(bits))
		}
	default:
		return nil, fmt.Errorf("%w: format %d with %d bits/sample",
			apperrors.ErrUnsupportedFormat, fc.AudioFormat, fc.BitsPerSample)
	}

	mono := audio.MixdownMono(interleaved, int(fc.NumChannels))

	buf, err := audio.New(mono, int(fc.SampleRate))
	if err != nil {
		return nil, err
	}
	return buf.Resample(audio.AnalysisRate)
}
