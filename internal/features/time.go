// SPDX-License-Identifier: MIT
//
// Package features holds the stateless per-frame descriptors. Time-domain
// functions take PCM samples, frequency-domain functions take the first half
// of a magnitude spectrum. Sums are accumulated in float64.
package features

import "math"

// RootMeanSquare returns sqrt(mean(x²)), or 0 for an empty frame.
func RootMeanSquare(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(frame))))
}

// PeakEnergy returns the largest absolute sample value in the frame.
func PeakEnergy(frame []float32) float32 {
	peak := float32(-1)
	for _, s := range frame {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak < 0 {
		return 0
	}
	return peak
}

// ZeroCrossingRate counts sign changes between consecutive samples. A sample
// is positive only when strictly greater than zero. The result is a raw count
// and is not normalized by the frame length.
func ZeroCrossingRate(frame []float32) float32 {
	var crossings int
	for i := 1; i < len(frame); i++ {
		if (frame[i] > 0) != (frame[i-1] > 0) {
			crossings++
		}
	}
	return float32(crossings)
}
