// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"audiotools/internal/config"
	"audiotools/internal/pcm"
)

var ErrAlreadyRecording = errors.New("audio: already recording")

// StartRecording writes captured input to filename as PCM WAV at the
// configured bit depth.
func (e *Engine) StartRecording(filename string) error {
	e.recordMu.Lock()
	defer e.recordMu.Unlock()

	if atomic.LoadInt32(&e.isRecording) == 1 {
		return ErrAlreadyRecording
	}

	bitDepth := e.config.Recording.BitDepth
	switch bitDepth {
	case 0:
		bitDepth = config.DefaultBitDepth
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("audio: unsupported recording bit depth %d", bitDepth)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	e.outputFile = file

	e.wavEncoder = wav.NewEncoder(file, int(e.sampleRate), bitDepth, e.channels, 1)

	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: e.channels,
			SampleRate:  int(e.sampleRate),
		},
		Data:           make([]int, e.framesPerBuffer*e.channels),
		SourceBitDepth: bitDepth,
	}
	e.sampleScale = float64(int64(1)<<(bitDepth-1)) - 1
	e.sampleOffset = 0
	if bitDepth == 8 {
		e.sampleOffset = pcm.Unsigned8Offset
	}
	e.writeFails = 0

	atomic.StoreInt32(&e.isRecording, 1)
	engineLog.Infof("recording to %s (%d-bit)", filename, bitDepth)

	return nil
}

// writeRecording converts float samples to integers and appends them to the
// WAV file. Recording stops after too many consecutive failed writes. The
// caller holds recordMu.
func (e *Engine) writeRecording(buffer []float32) {
	data := e.sampleBuf.Data[:cap(e.sampleBuf.Data)]
	if len(buffer) > len(data) {
		buffer = buffer[:len(data)]
	}
	for i, sample := range buffer {
		data[i] = floatToInt(sample, e.sampleScale) + e.sampleOffset
	}
	e.sampleBuf.Data = data[:len(buffer)]

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		e.writeFails++
		engineLog.Errorf("writing WAV: %v", err)
		if e.writeFails >= config.DefaultMaxConsecutiveWriteFailures {
			engineLog.Errorf("%d consecutive write failures, stopping recording", e.writeFails)
			atomic.StoreInt32(&e.isRecording, 0)
		}
		return
	}
	e.writeFails = 0
}

func floatToInt(sample float32, scale float64) int {
	v := float64(sample)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(v * scale)
}

func (e *Engine) IsRecording() bool {
	return atomic.LoadInt32(&e.isRecording) == 1
}

// StopRecording finalizes the WAV file. It is safe to call while the input
// stream is still running.
func (e *Engine) StopRecording() error {
	atomic.StoreInt32(&e.isRecording, 0)

	e.recordMu.Lock()
	defer e.recordMu.Unlock()

	if e.wavEncoder == nil && e.outputFile == nil {
		return nil
	}

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}

	return nil
}

// Close stops the input stream before the recording so no callback is left
// writing to the file.
func (e *Engine) Close() error {
	if err := e.StopInputStream(); err != nil {
		return err
	}

	return e.StopRecording()
}
