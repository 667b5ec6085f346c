// SPDX-License-Identifier: MIT
package features

import "math"

// DefaultRolloffPercentile is the energy fraction used by SpectralRolloff
// when callers have no preference.
const DefaultRolloffPercentile = 0.85

// SpectralCentroid returns Σ(M[k]·k)/ΣM[k] in bins, 0 for a silent spectrum.
func SpectralCentroid(magnitudes []float32) float32 {
	var weighted, total float64
	for k, m := range magnitudes {
		weighted += float64(m) * float64(k)
		total += float64(m)
	}
	if total <= 0 {
		return 0
	}
	return float32(weighted / total)
}

// SpectralFlatness returns the geometric mean over the arithmetic mean of
// (1+M[k]). The offset keeps the logarithm finite on empty bins.
func SpectralFlatness(magnitudes []float32) float32 {
	if len(magnitudes) == 0 {
		return 0
	}
	var logSum, sum float64
	for _, m := range magnitudes {
		v := 1 + float64(m)
		logSum += math.Log(v)
		sum += v
	}
	n := float64(len(magnitudes))
	mean := sum / n
	if mean <= 0 {
		return 0
	}
	return float32(math.Exp(logSum/n) / mean)
}

// SpectralCrest returns max(M[k]²)/mean(M[k]²). A silent spectrum has a
// crest of 1.
func SpectralCrest(magnitudes []float32) float32 {
	var sum, peak float64
	for _, m := range magnitudes {
		sq := float64(m) * float64(m)
		sum += sq
		if sq > peak {
			peak = sq
		}
	}
	if sum <= 0 {
		return 1
	}
	mean := sum / float64(len(magnitudes))
	return float32(peak / mean)
}

// SpectralRolloff returns k/K for the smallest bin k whose cumulative
// magnitude exceeds percentile of the total. It returns 0 if the threshold
// is never exceeded.
func SpectralRolloff(magnitudes []float32, percentile float32) float32 {
	if len(magnitudes) == 0 {
		return 0
	}
	var total float64
	for _, m := range magnitudes {
		total += float64(m)
	}
	threshold := total * float64(percentile)

	var cumulative float64
	for k, m := range magnitudes {
		cumulative += float64(m)
		if cumulative > threshold {
			return float32(k) / float32(len(magnitudes))
		}
	}
	return 0
}

// SpectralKurtosis returns the excess kurtosis M4/M2² - 3 of the magnitudes
// around their mean. A spectrum with zero variance yields -3.
func SpectralKurtosis(magnitudes []float32) float32 {
	if len(magnitudes) == 0 {
		return -3
	}
	n := float64(len(magnitudes))

	var sum float64
	for _, m := range magnitudes {
		sum += float64(m)
	}
	mean := sum / n

	var m2, m4 float64
	for _, m := range magnitudes {
		d := float64(m) - mean
		d2 := d * d
		m2 += d2
		m4 += d2 * d2
	}
	m2 /= n
	m4 /= n

	if m2 == 0 {
		return -3
	}
	return float32(m4/(m2*m2) - 3)
}
