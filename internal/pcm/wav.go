// SPDX-License-Identifier: MIT
package pcm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "audiotools/internal/log"
)

var ErrInvalidWAV = errors.New("pcm: invalid WAV file")

// LoadWAV decodes a WAV file into a Buffer normalized to [-1, 1).
func LoadWAV(path string) (*Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	return DecodeWAV(file)
}

// DecodeWAV reads a whole WAV stream into a Buffer.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}
	if buf.Format == nil {
		return nil, fmt.Errorf("%w: missing format", ErrInvalidWAV)
	}

	bitDepth := int(buf.SourceBitDepth)
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}
	samples := intToFloat(buf.Data, bitDepth)

	applog.Debugf("PCM: decoded WAV (%d Hz, %d channels, %d bit, %d samples)",
		buf.Format.SampleRate, buf.Format.NumChannels, bitDepth, len(samples))

	return NewBuffer(samples, buf.Format.NumChannels, buf.Format.SampleRate)
}

// intToFloat scales signed integer PCM of the given bit depth to [-1, 1).
// 8-bit WAV is unsigned and is recentred first.
func intToFloat(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	scale := 1 / math.Ldexp(1, bitDepth-1)

	for i, v := range data {
		if bitDepth == 8 {
			v -= Unsigned8Offset
		}
		out[i] = float32(float64(v) * scale)
	}
	return out
}

// Unsigned8Offset recentres signed samples for 8-bit WAV, which stores
// unsigned bytes. The go-audio encoder writes the low byte as is.
const Unsigned8Offset = 128

// WriteWAV encodes interleaved float samples as integer PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, channels, sampleRate, bitDepth int) error {
	if channels <= 0 {
		return ErrInvalidChannels
	}
	if sampleRate <= 0 {
		return ErrInvalidRate
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("%w, got %d", ErrInvalidBitDepth, bitDepth)
	}

	encoder := wav.NewEncoder(w, sampleRate, bitDepth, channels, 1)
	full := math.Ldexp(1, bitDepth-1)

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	offset := 0
	if bitDepth == 8 {
		offset = Unsigned8Offset
	}
	for i, s := range samples {
		v := math.Round(float64(s) * full)
		buf.Data[i] = int(min(max(v, -full), full-1)) + offset
	}

	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("data writing error: %w", err)
	}
	return encoder.Close()
}
