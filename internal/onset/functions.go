// SPDX-License-Identifier: MIT
package onset

import (
	"errors"
	"math"

	applog "audiotools/internal/log"
)

// ErrSpectrumMismatch is reported when the real and imaginary spectra handed
// to ComplexSpectralDifference differ in length.
var ErrSpectrumMismatch = errors.New("onset: real and imaginary spectra differ in length")

// Functions computes onset-strength values frame by frame. Each function keeps
// its own previous-frame memory; whenever a call arrives with a length that
// differs from the stored one, that memory is reset to zeros of the new length
// so the first frame after a resize is compared against silence.
//
// Functions is not safe for concurrent use.
type Functions struct {
	frameSize int

	energyLength int
	prevEnergy   float64

	prevMagnitude    []float32 // spectral difference
	prevMagnitudeHWR []float32 // half-wave rectified spectral difference

	prevPhase          []float32 // complex spectral difference
	prevPhase2         []float32
	prevMagnitudeCmplx []float32
}

// NewFunctions returns a bank with memories sized for frameSize.
func NewFunctions(frameSize int) *Functions {
	f := &Functions{}
	f.UpdateFrameSize(frameSize)
	return f
}

// FrameSize returns the length the memories were last sized for.
func (f *Functions) FrameSize() int {
	return f.frameSize
}

// UpdateFrameSize resets every memory to zeros of length frameSize.
func (f *Functions) UpdateFrameSize(frameSize int) {
	if frameSize < 0 {
		frameSize = 0
	}
	f.frameSize = frameSize
	f.energyLength = frameSize
	f.prevEnergy = 0
	f.prevMagnitude = make([]float32, frameSize)
	f.prevMagnitudeHWR = make([]float32, frameSize)
	f.prevPhase = make([]float32, frameSize)
	f.prevPhase2 = make([]float32, frameSize)
	f.prevMagnitudeCmplx = make([]float32, frameSize)
}

// resize returns buf if it already has length n, otherwise a zeroed slice of
// length n.
func resize(buf []float32, n int) []float32 {
	if len(buf) == n {
		return buf
	}
	applog.Debugf("Onset: resetting function memory from %d to %d", len(buf), n)
	return make([]float32, n)
}

// EnergyDifference returns max(0, E - Eprev) where E is the frame energy Σx².
func (f *Functions) EnergyDifference(frame []float32) float32 {
	if len(frame) != f.energyLength {
		f.energyLength = len(frame)
		f.prevEnergy = 0
	}

	var energy float64
	for _, s := range frame {
		energy += float64(s) * float64(s)
	}

	diff := energy - f.prevEnergy
	f.prevEnergy = energy
	if diff > 0 {
		return float32(diff)
	}
	return 0
}

// SpectralDifference returns Σ|M[k] - Mprev[k]|.
func (f *Functions) SpectralDifference(magnitudes []float32) float32 {
	f.prevMagnitude = resize(f.prevMagnitude, len(magnitudes))

	var sum float64
	for k, m := range magnitudes {
		sum += math.Abs(float64(m - f.prevMagnitude[k]))
		f.prevMagnitude[k] = m
	}
	return float32(sum)
}

// SpectralDifferenceHWR returns Σmax(0, M[k] - Mprev[k]).
func (f *Functions) SpectralDifferenceHWR(magnitudes []float32) float32 {
	f.prevMagnitudeHWR = resize(f.prevMagnitudeHWR, len(magnitudes))

	var sum float64
	for k, m := range magnitudes {
		if d := m - f.prevMagnitudeHWR[k]; d > 0 {
			sum += float64(d)
		}
		f.prevMagnitudeHWR[k] = m
	}
	return float32(sum)
}

// ComplexSpectralDifference measures the distance between each bin and the
// value predicted from the previous two frames, assuming a constant
// magnitude and a linearly advancing phase.
func (f *Functions) ComplexSpectralDifference(real, imag []float32) (float32, error) {
	if len(real) != len(imag) {
		applog.Errorf("Onset: complex spectral difference needs equal spectra, got real=%d imag=%d", len(real), len(imag))
		return 0, ErrSpectrumMismatch
	}

	n := len(real)
	if len(f.prevPhase) != n || len(f.prevPhase2) != n || len(f.prevMagnitudeCmplx) != n {
		applog.Debugf("Onset: resetting complex spectral memory from %d to %d", len(f.prevPhase), n)
		f.prevPhase = make([]float32, n)
		f.prevPhase2 = make([]float32, n)
		f.prevMagnitudeCmplx = make([]float32, n)
	}

	var sum float64
	for k := range n {
		re, im := float64(real[k]), float64(imag[k])
		phase := math.Atan2(im, re)
		magnitude := math.Hypot(re, im)

		deviation := princarg(phase - 2*float64(f.prevPhase[k]) + float64(f.prevPhase2[k]))

		magDiff := magnitude - float64(f.prevMagnitudeCmplx[k])
		phaseDiff := -magnitude * math.Sin(deviation)
		sum += math.Hypot(magDiff, phaseDiff)

		f.prevPhase2[k] = f.prevPhase[k]
		f.prevPhase[k] = float32(phase)
		f.prevMagnitudeCmplx[k] = float32(magnitude)
	}
	return float32(sum), nil
}

// HighFrequencyContent returns ΣM[k]·(k+1).
func HighFrequencyContent(magnitudes []float32) float32 {
	var sum float64
	for k, m := range magnitudes {
		sum += float64(m) * float64(k+1)
	}
	return float32(sum)
}

// princarg wraps phase into [-π, π].
func princarg(phase float64) float64 {
	for phase > math.Pi {
		phase -= 2 * math.Pi
	}
	for phase < -math.Pi {
		phase += 2 * math.Pi
	}
	return phase
}
