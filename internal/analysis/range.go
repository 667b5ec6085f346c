// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"

	"audiotools/internal/pcm"
)

var ErrShortRead = errors.New("analysis: source returned fewer samples than requested")

// ProcessAudioFrames fetches frames [start, end) from src, mixes them down to mono and
// processes the result as one frame with beat detection enabled. The pipeline follows the
// source's sample rate.
func (p *Pipeline) ProcessAudioFrames(src pcm.Source, start, end int) error {
	info := src.Info()
	if err := pcm.CheckRange(info, start, end); err != nil {
		logger.Errorf("Cannot process frames: %v", err)
		return err
	}

	if float64(info.SampleRate) != p.GetSampleRate() {
		if err := p.UpdateSampleRate(info.SampleRate); err != nil {
			return err
		}
	}

	interleaved, err := src.GetFrame(start, end)
	if err != nil {
		return fmt.Errorf("could not read frames [%d, %d): %w", start, end, err)
	}
	if want := (end - start) * info.Channels; len(interleaved) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrShortRead, len(interleaved), want)
	}

	return p.ProcessAudioFrame(pcm.Downmix(nil, interleaved, info.Channels), true)
}

// ProcessTimeRange is ProcessAudioFrames with the range given in seconds.
func (p *Pipeline) ProcessTimeRange(src pcm.Source, startSec, endSec float64) error {
	start, end, err := pcm.FrameRange(src.Info(), startSec, endSec)
	if err != nil {
		logger.Errorf("Cannot process time range: %v", err)
		return err
	}
	return p.ProcessAudioFrames(src, start, end)
}

// Walk processes src in consecutive non-overlapping frames of the current frame size and calls
// fn after each one with the frame's start time. A trailing partial frame is skipped.
func (p *Pipeline) Walk(src pcm.Source, fn func(index int, startSec float64) error) error {
	info := src.Info()
	size := p.FrameSize()

	for i, start := 0, 0; start+size <= info.TotalFrames; i, start = i+1, start+size {
		if err := p.ProcessAudioFrames(src, start, start+size); err != nil {
			return err
		}
		if err := fn(i, float64(start)/float64(info.SampleRate)); err != nil {
			return err
		}
	}
	return nil
}
