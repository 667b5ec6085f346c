// SPDX-License-Identifier: MIT
//
// Package beat detects beats by comparing the instantaneous energy of each
// spectral sub-band against its recent history.
package beat

import (
	applog "audiotools/internal/log"
)

const (
	DefaultSubbands      = 32
	DefaultEnergyHistory = 41

	// KickBand is the sub-band checked by IsKick.
	KickBand = 0
)

// Linear model mapping sub-band variance to the factor the history average
// is scaled by before comparison. Noisy bands need a smaller excess.
const (
	varianceSlope     = -0.0025714
	varianceIntercept = 1.15142857
)

var logger = applog.With("Beat")

// Detector tracks per-sub-band energy over a circular history. It is not
// safe for concurrent mutation; readers may run concurrently with each other.
type Detector struct {
	subbands    []float32   // current sub-band averages
	average     []float32   // history mean before the current frame
	variance    []float32   // spread of bins around the sub-band average
	beatValues  []float32   // sensitivity derived from variance
	history     [][]float32 // [subband][slot]
	historySize int
	position    int // shared write cursor into every history row
}

// NewDetector returns a detector with the given sizes. Invalid sizes are
// replaced by the defaults.
func NewDetector(subbands, historySize int) *Detector {
	d := &Detector{historySize: DefaultEnergyHistory}
	if historySize > 0 {
		d.historySize = historySize
	}
	if subbands <= 0 {
		subbands = DefaultSubbands
	}
	d.UpdateFFTSubbandSize(subbands)
	return d
}

// Subbands returns the configured sub-band count.
func (d *Detector) Subbands() int { return len(d.subbands) }

// HistorySize returns the configured history depth.
func (d *Detector) HistorySize() int { return d.historySize }

// UpdateFFTSubbandSize reallocates every per-band array for n sub-bands,
// clearing all history. n <= 0 is rejected and the current state kept.
func (d *Detector) UpdateFFTSubbandSize(n int) {
	if n <= 0 {
		logger.Warnf("FFT subbands size '%d' is invalid, value '%d' remains", n, len(d.subbands))
		return
	}
	logger.Debugf("updating FFT subbands size from '%d' to '%d'", len(d.subbands), n)

	d.subbands = make([]float32, n)
	d.average = make([]float32, n)
	d.variance = make([]float32, n)
	d.beatValues = make([]float32, n)
	d.history = make([][]float32, n)
	d.UpdateEnergyHistorySize(d.historySize)
}

// UpdateEnergyHistorySize reallocates the history rows with n slots and
// rewinds the cursor. n <= 0 is rejected and the current state kept.
func (d *Detector) UpdateEnergyHistorySize(n int) {
	if n <= 0 {
		logger.Warnf("energy history size '%d' is invalid, value '%d' remains", n, d.historySize)
		return
	}
	logger.Debugf("updating energy history size from '%d' to '%d'", d.historySize, n)

	d.historySize = n
	for b := range d.history {
		d.history[b] = make([]float32, n)
	}
	d.position = 0
}

// ProcessMagnitude folds one magnitude spectrum into the sub-band state.
// Each sub-band averages len(spectrum)/Subbands() contiguous bins; trailing
// bins that do not fill a sub-band are ignored.
func (d *Detector) ProcessMagnitude(spectrum []float32) {
	n := len(d.subbands)
	if n == 0 || d.historySize == 0 {
		return
	}
	width := len(spectrum) / n

	for b := range n {
		bins := spectrum[b*width : (b+1)*width]

		var sum float64
		for _, m := range bins {
			sum += float64(m)
		}
		var mean float64
		if width > 0 {
			mean = sum / float64(width)
		}

		var spread float64
		for _, m := range bins {
			diff := float64(m) - mean
			spread += diff * diff
		}
		if width > 0 {
			spread /= float64(width)
		}

		d.subbands[b] = float32(mean)
		d.variance[b] = float32(spread)
		d.beatValues[b] = float32(varianceSlope*spread + varianceIntercept)
	}

	for b := range n {
		var sum float64
		for _, e := range d.history[b] {
			sum += float64(e)
		}
		d.average[b] = float32(sum / float64(d.historySize))
	}

	for b := range n {
		d.history[b][d.position] = d.subbands[b]
	}
	d.position = (d.position + 1) % d.historySize
}

// IsBeat reports whether sub-band b exceeds its scaled history average.
func (d *Detector) IsBeat(b int) bool {
	if b < 0 || b >= len(d.subbands) {
		logger.Errorf("cannot check if beat: sub band ('%d') must be within [0, %d)", b, len(d.subbands))
		return false
	}
	return d.subbands[b] > d.average[b]*d.beatValues[b]
}

// IsKick reports a beat in the lowest sub-band.
func (d *Detector) IsKick() bool {
	return d.IsBeat(KickBand)
}

// IsSnare reports beats across the lower-mid third of the sub-bands.
func (d *Detector) IsSnare() bool {
	low, high := d.snareRange()
	return d.IsBeatRange(low, high, (high-low)/3)
}

// IsHiHat reports beats across the upper half of the sub-bands.
func (d *Detector) IsHiHat() bool {
	low, high := d.hiHatRange()
	return d.IsBeatRange(low, high, (high-low)/3)
}

// Drums reports kick, snare and hi-hat together. A drum whose range is empty
// at the current sub-band count (snare below 6, hi-hat below 3) reads false
// without logging, so Drums is safe to poll every frame.
func (d *Detector) Drums() (kick, snare, hihat bool) {
	kick = d.IsKick()
	if low, high := d.snareRange(); high > low {
		snare = d.IsBeatRange(low, high, (high-low)/3)
	}
	if low, high := d.hiHatRange(); high > low {
		hihat = d.IsBeatRange(low, high, (high-low)/3)
	}
	return kick, snare, hihat
}

func (d *Detector) snareRange() (low, high int) {
	return 1, len(d.subbands) / 3
}

func (d *Detector) hiHatRange() (low, high int) {
	return len(d.subbands) / 2, len(d.subbands) - 1
}

// IsBeatRange reports whether more than threshold sub-bands in [low, high]
// are beating.
func (d *Detector) IsBeatRange(low, high, threshold int) bool {
	n := len(d.subbands)
	if low < 0 || low >= n {
		logger.Errorf("cannot check if beat is in range: low subband is '%d', expected >= '0' and < '%d'", low, n)
		return false
	}
	if high < 0 || high >= n {
		logger.Errorf("cannot check if beat is in range: high subband is '%d', expected >= '0' and < '%d'", high, n)
		return false
	}
	if high <= low {
		logger.Errorf("cannot check if beat is in range: high subband ('%d') must be more than low subband ('%d')", high, low)
		return false
	}

	beats := 0
	for b := low; b <= high; b++ {
		if d.IsBeat(b) {
			beats++
		}
	}
	return beats > threshold
}

// Band returns the current average of sub-band b, or -1 when b is outside
// (0, Subbands()).
func (d *Detector) Band(b int) float32 {
	if b <= 0 || b >= len(d.subbands) {
		logger.Errorf("cannot get FFT subband: specified subband is '%d', expected > '0' and < '%d'", b, len(d.subbands))
		return -1
	}
	return d.subbands[b]
}

// Energies copies the current sub-band averages into dst, growing it if
// needed, and returns it.
func (d *Detector) Energies(dst []float32) []float32 {
	if cap(dst) < len(d.subbands) {
		dst = make([]float32, len(d.subbands))
	}
	dst = dst[:len(d.subbands)]
	copy(dst, d.subbands)
	return dst
}
