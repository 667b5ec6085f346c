// SPDX-License-Identifier: MIT
package window

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// Type selects the weighting applied to a frame before the FFT.
type Type int

const (
	Rectangular Type = iota
	Hanning
	Hamming
	Blackman
	Tukey
)

// DefaultCosineFraction is the taper fraction used by Tukey when none is configured.
const DefaultCosineFraction = 0.5

func (t Type) String() string {
	switch t {
	case Rectangular:
		return "Rectangular"
	case Hanning:
		return "Hanning"
	case Hamming:
		return "Hamming"
	case Blackman:
		return "Blackman"
	case Tukey:
		return "Tukey"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType converts a name (case-insensitive) to a Type. Unknown names
// return Hanning together with an error.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rectangular", "rect", "none":
		return Rectangular, nil
	case "hanning", "hann":
		return Hanning, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "tukey":
		return Tukey, nil
	default:
		return Hanning, fmt.Errorf("unknown window function name: '%s'", name)
	}
}

// Build returns length symmetric window coefficients. cosineFraction is only
// read by Tukey and is clamped to [0,1]. Lengths of one or less yield a window
// of ones because the symmetric formulas divide by length-1.
func Build(length int, t Type, cosineFraction float64) []float32 {
	if length <= 0 {
		return []float32{}
	}
	out := make([]float32, length)
	if length == 1 {
		out[0] = 1
		return out
	}

	coeffs := make([]float64, length)
	Fill(coeffs, t, cosineFraction)
	for i, c := range coeffs {
		out[i] = float32(c)
	}
	return out
}

// Fill overwrites coeffs with the window of the given type.
func Fill(coeffs []float64, t Type, cosineFraction float64) {
	// gonum multiplies in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	if len(coeffs) <= 1 {
		return
	}

	switch t {
	case Rectangular:
	case Hanning:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case Tukey:
		if cosineFraction < 0 {
			cosineFraction = 0
		}
		if cosineFraction > 1 {
			cosineFraction = 1
		}
		window.Tukey{Alpha: cosineFraction}.Transform(coeffs)
	default:
		window.Hann(coeffs)
	}
}

// Apply multiplies frame by coeffs element-wise in place. Extra samples on
// either side are left untouched.
func Apply(frame, coeffs []float32) {
	n := min(len(frame), len(coeffs))
	for i := range n {
		frame[i] *= coeffs[i]
	}
}
