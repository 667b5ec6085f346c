// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"strconv"
	"sync"

	"audiotools/internal/config"
)

const (
	testSampleRate = 44100
	testFrameSize  = 512
	testChannels   = 2

	lowThreshold  float32 = 0.001
	highThreshold float32 = 0.95
)

var (
	testBuffer  = sineBuffer(testFrameSize*testChannels, 0.5)
	quietBuffer = sineBuffer(testFrameSize*testChannels, 0.01)
	loudBuffer  = sineBuffer(testFrameSize*testChannels, 0.9)
)

// sineBuffer fills an interleaved buffer with a 440 Hz tone at amplitude.
func sineBuffer(size int, amplitude float64) []float32 {
	buf := make([]float32, size)
	for i := range buf {
		frame := i / testChannels
		buf[i] = float32(amplitude * math.Sin(2*math.Pi*440*float64(frame)/testSampleRate))
	}
	return buf
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func absFloat(v float64) float64 {
	return math.Abs(v)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Audio.FramesPerBuffer = testFrameSize
	cfg.Audio.InputChannels = testChannels
	cfg.Audio.GateEnabled = true
	cfg.Audio.GateThreshold = float64(lowThreshold)
	return &cfg
}

// captureProcessor keeps a copy of every frame it receives.
type captureProcessor struct {
	mu     sync.Mutex
	frames [][]float32
}

func (c *captureProcessor) Process(frame []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]float32(nil), frame...))
}

func (c *captureProcessor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// nopProcessor discards frames without allocating.
type nopProcessor struct{ calls int }

func (n *nopProcessor) Process([]float32) { n.calls++ }
