// SPDX-License-Identifier: MIT
package audio

import "math"

func (e *Engine) EnableGate() {
	e.gateEnabled = true
}

func (e *Engine) DisableGate() {
	e.gateEnabled = false
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	e.gateThreshold = float32(threshold)
}

// GetGateThreshold returns the current noise gate threshold.
func (e *Engine) GetGateThreshold() float64 {
	return float64(e.gateThreshold)
}

// peakAmplitude returns max |sample|. With the sign bit cleared, IEEE-754
// bit patterns order the same way as the values they encode, so the max is
// taken on int32 without branches. NaN inputs compare above every finite value.
func peakAmplitude(buffer []float32) float32 {
	var peak int32
	for _, sample := range buffer {
		amplitude := int32(math.Float32bits(sample) &^ (1 << 31))
		diff := amplitude - peak
		peak += diff &^ (diff >> 31)
	}
	return math.Float32frombits(uint32(peak))
}
