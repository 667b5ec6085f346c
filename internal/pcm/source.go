// SPDX-License-Identifier: MIT
//
// Package pcm supplies interleaved float PCM frames to the analysis
// pipeline. Frame ranges are half-open: GetFrame(start, end) returns frames
// start through end-1.
package pcm

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidRange    = errors.New("pcm: invalid frame range")
	ErrInvalidChannels = errors.New("pcm: channel count must be positive")
	ErrInvalidRate     = errors.New("pcm: sample rate must be positive")
	ErrInvalidBitDepth = errors.New("pcm: bit depth must be 8, 16, 24 or 32")
)

// Info describes a PCM stream.
type Info struct {
	Channels    int
	SampleRate  int
	TotalFrames int
	Duration    float64 // seconds
}

// Source yields interleaved frames on demand.
type Source interface {
	Info() Info
	// GetFrame returns (end-start)*Channels interleaved samples. It fails
	// rather than returning fewer frames than requested.
	GetFrame(start, end int) ([]float32, error)
}

// Buffer is an in-memory Source.
type Buffer struct {
	info    Info
	samples []float32
}

var _ Source = (*Buffer)(nil)

// NewBuffer wraps interleaved samples. A trailing partial frame is dropped.
func NewBuffer(samples []float32, channels, sampleRate int) (*Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChannels, channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRate, sampleRate)
	}
	frames := len(samples) / channels
	return &Buffer{
		info: Info{
			Channels:    channels,
			SampleRate:  sampleRate,
			TotalFrames: frames,
			Duration:    float64(frames) / float64(sampleRate),
		},
		samples: samples[:frames*channels],
	}, nil
}

func (b *Buffer) Info() Info { return b.info }

// Samples returns the whole interleaved buffer without copying.
func (b *Buffer) Samples() []float32 { return b.samples }

// GetFrame returns a copy of frames [start, end).
func (b *Buffer) GetFrame(start, end int) ([]float32, error) {
	if err := CheckRange(b.info, start, end); err != nil {
		return nil, err
	}
	ch := b.info.Channels
	out := make([]float32, (end-start)*ch)
	copy(out, b.samples[start*ch:end*ch])
	return out, nil
}

// CheckRange validates a half-open frame range against info.
func CheckRange(info Info, start, end int) error {
	if start < 0 || end <= start || end > info.TotalFrames {
		return fmt.Errorf("%w: [%d, %d) of %d frames", ErrInvalidRange, start, end, info.TotalFrames)
	}
	return nil
}

// FrameRange converts a time range in seconds to a half-open frame range.
func FrameRange(info Info, startSec, endSec float64) (int, int, error) {
	if startSec < 0 || endSec <= startSec || endSec > info.Duration {
		return 0, 0, fmt.Errorf("%w: [%.3fs, %.3fs) of %.3fs", ErrInvalidRange, startSec, endSec, info.Duration)
	}
	start := int(math.Round(startSec * float64(info.SampleRate)))
	end := int(math.Round(endSec * float64(info.SampleRate)))
	end = min(end, info.TotalFrames)
	if end <= start {
		return 0, 0, fmt.Errorf("%w: [%.3fs, %.3fs) is shorter than one frame", ErrInvalidRange, startSec, endSec)
	}
	return start, end, nil
}

// Downmix averages interleaved channels into dst, growing it if needed, and
// returns the mono slice.
func Downmix(dst, interleaved []float32, channels int) []float32 {
	if channels <= 0 {
		return dst[:0]
	}
	frames := len(interleaved) / channels
	if cap(dst) < frames {
		dst = make([]float32, frames)
	}
	dst = dst[:frames]

	if channels == 1 {
		copy(dst, interleaved)
		return dst
	}

	scale := 1 / float32(channels)
	for f := range frames {
		var sum float32
		base := f * channels
		for c := range channels {
			sum += interleaved[base+c]
		}
		dst[f] = sum * scale
	}
	return dst
}
