// SPDX-License-Identifier: MIT
//
// Package utils holds signal generators and doubles shared by tests and the CLI demo paths.
package utils

import (
	"math"
	"sync"
)

// MockTransport records every message sent to it. It satisfies transport.Transport.
type MockTransport struct {
	mu       sync.Mutex
	Messages []any
	Closed   bool
}

// Send stores the message for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, data)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.Messages...)
}

// GenerateComplexWave is a 440 Hz fundamental with its 2nd and 3rd harmonics, peak 0.9.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.9)
	}
	return buffer
}

// GenerateImpulseTrain places a unit impulse every period samples, starting at 0.
func GenerateImpulseTrain(size, period int) []float32 {
	buffer := make([]float32, size)
	if period <= 0 {
		return buffer
	}
	for i := 0; i < size; i += period {
		buffer[i] = 1
	}
	return buffer
}

// GenerateBursts produces decaying noise-like bursts of length burst every period samples.
// The sequence is deterministic.
func GenerateBursts(size, period, burst int) []float32 {
	buffer := make([]float32, size)
	if period <= 0 || burst <= 0 {
		return buffer
	}
	var seed uint32 = 0x9e3779b9
	for start := 0; start < size; start += period {
		for j := 0; j < burst && start+j < size; j++ {
			seed ^= seed << 13
			seed ^= seed >> 17
			seed ^= seed << 5
			noise := float64(seed)/math.MaxUint32*2 - 1
			decay := math.Exp(-5 * float64(j) / float64(burst))
			buffer[start+j] = float32(noise * decay * 0.9)
		}
	}
	return buffer
}

// Interleave repeats a mono signal across channels.
func Interleave(mono []float32, channels int) []float32 {
	out := make([]float32, len(mono)*channels)
	for i, s := range mono {
		for c := range channels {
			out[i*channels+c] = s
		}
	}
	return out
}

func FindPeakBin(magnitudes []float32, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
