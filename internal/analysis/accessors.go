// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"audiotools/internal/envelope"
	"audiotools/internal/features"
	"audiotools/internal/onset"
)

// Features is a snapshot of the scalar features of the latest frame.
type Features struct {
	RootMeanSquare   float32 `json:"rms"`
	PeakEnergy       float32 `json:"peak"`
	ZeroCrossingRate float32 `json:"zcr"`
	Centroid         float32 `json:"centroid"`
	CentroidHz       float64 `json:"centroidHz"`
	Flatness         float32 `json:"flatness"`
	Crest            float32 `json:"crest"`
	Rolloff          float32 `json:"rolloff"`
	Kurtosis         float32 `json:"kurtosis"`
	Kick             bool    `json:"kick"`
	Snare            bool    `json:"snare"`
	HiHat            bool    `json:"hihat"`
}

// Features computes every stateless feature under one read lock.
func (p *Pipeline) Features() Features {
	p.mu.RLock()
	defer p.mu.RUnlock()

	mags := p.ws.magnitudes
	centroid := features.SpectralCentroid(mags)
	f := Features{
		RootMeanSquare:   features.RootMeanSquare(p.ws.frame),
		PeakEnergy:       features.PeakEnergy(p.ws.frame),
		ZeroCrossingRate: features.ZeroCrossingRate(p.ws.frame),
		Centroid:         centroid,
		CentroidHz:       float64(centroid) * p.sampleRate / float64(p.frameSize),
		Flatness:         features.SpectralFlatness(mags),
		Crest:            features.SpectralCrest(mags),
		Rolloff:          features.SpectralRolloff(mags, features.DefaultRolloffPercentile),
		Kurtosis:         features.SpectralKurtosis(mags),
	}
	f.Kick, f.Snare, f.HiHat = p.beat.Drums()
	return f
}

// FrameSize returns the current frame (and transform) size.
func (p *Pipeline) FrameSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frameSize
}

// Processed reports whether a frame has been processed since the last Initialize.
func (p *Pipeline) Processed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.processed
}

// AudioFrame returns a copy of the latest unwindowed frame.
func (p *Pipeline) AudioFrame() []float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]float32(nil), p.ws.frame...)
}

// MagnitudeSpectrum returns a copy of the first N/2 magnitude bins.
func (p *Pipeline) MagnitudeSpectrum() []float32 {
	return p.GetMagnitudes()
}

// Spectrum returns copies of the full real and imaginary FFT output.
func (p *Pipeline) Spectrum() (re, im []float32) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]float32(nil), p.ws.real...), append([]float32(nil), p.ws.imag...)
}

// GetMagnitudes implements FFTResultProvider. It allocates; see GetMagnitudesInto.
func (p *Pipeline) GetMagnitudes() []float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]float32(nil), p.ws.magnitudes...)
}

// GetMagnitudesInto copies the latest magnitudes into dest, which must hold exactly
// GetFFTSize()/2 values.
func (p *Pipeline) GetMagnitudesInto(dest []float32) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(dest) != len(p.ws.magnitudes) {
		return fmt.Errorf("%w: got %d, want %d", ErrMagnitudeLength, len(dest), len(p.ws.magnitudes))
	}
	copy(dest, p.ws.magnitudes)
	return nil
}

// GetFrequencyForBin returns binIndex * sampleRate / N for bins in [0, N/2), else 0.
func (p *Pipeline) GetFrequencyForBin(binIndex int) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if binIndex < 0 || binIndex >= len(p.ws.magnitudes) {
		return 0
	}
	return float64(binIndex) * p.sampleRate / float64(p.frameSize)
}

// GetFFTSize implements FFTResultProvider.
func (p *Pipeline) GetFFTSize() int { return p.FrameSize() }

// GetSampleRate implements FFTResultProvider.
func (p *Pipeline) GetSampleRate() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sampleRate
}

// UpdateSampleRate changes the rate used for bin frequencies and envelope extraction.
func (p *Pipeline) UpdateSampleRate(sampleRate int) error {
	if sampleRate <= 0 {
		logger.Errorf("Ignoring sample rate %d", sampleRate)
		return fmt.Errorf("%w, got %d", ErrInvalidSampleRate, sampleRate)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sampleRate = float64(sampleRate)
	p.envelope.UpdateSampleRate(sampleRate)
	return nil
}

func (p *Pipeline) RootMeanSquare() float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return features.RootMeanSquare(p.ws.frame)
}

func (p *Pipeline) PeakEnergy() float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return features.PeakEnergy(p.ws.frame)
}

func (p *Pipeline) ZeroCrossingRate() float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return features.ZeroCrossingRate(p.ws.frame)
}

// SpectralCentroid is in bins; multiply by GetSampleRate()/GetFFTSize() for Hz.
func (p *Pipeline) SpectralCentroid() float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return features.SpectralCentroid(p.ws.magnitudes)
}

func (p *Pipeline) SpectralFlatness() float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return features.SpectralFlatness(p.ws.magnitudes)
}

func (p *Pipeline) SpectralCrest() float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return features.SpectralCrest(p.ws.magnitudes)
}

func (p *Pipeline) SpectralRolloff() float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return features.SpectralRolloff(p.ws.magnitudes, features.DefaultRolloffPercentile)
}

func (p *Pipeline) SpectralKurtosis() float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return features.SpectralKurtosis(p.ws.magnitudes)
}

// The onset functions below advance their memories, so each call is a step in the
// detection function and takes the write lock.

func (p *Pipeline) EnergyDifference() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onsets.EnergyDifference(p.ws.frame)
}

func (p *Pipeline) SpectralDifference() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onsets.SpectralDifference(p.ws.magnitudes)
}

func (p *Pipeline) SpectralDifferenceHWR() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onsets.SpectralDifferenceHWR(p.ws.magnitudes)
}

// ComplexSpectralDifference runs over the full real and imaginary spectra.
func (p *Pipeline) ComplexSpectralDifference() (float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onsets.ComplexSpectralDifference(p.ws.real, p.ws.imag)
}

func (p *Pipeline) HighFrequencyContent() float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return onset.HighFrequencyContent(p.ws.magnitudes)
}

// EnvelopeValues runs envelope extraction over the latest frame.
func (p *Pipeline) EnvelopeValues() (envelope.Data, envelope.Status) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.envelope.Extract(p.ws.frame)
}

// Envelope returns the envelope analysis used by EnvelopeValues.
func (p *Pipeline) Envelope() *envelope.Analysis { return p.envelope }

func (p *Pipeline) IsBeat(subband int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.beat.IsBeat(subband)
}

func (p *Pipeline) IsKick() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.beat.IsKick()
}

func (p *Pipeline) IsSnare() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.beat.IsSnare()
}

func (p *Pipeline) IsHiHat() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.beat.IsHiHat()
}

// Drums reads kick, snare and hi-hat from the same frame.
func (p *Pipeline) Drums() (kick, snare, hihat bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.beat.Drums()
}

func (p *Pipeline) IsBeatRange(low, high, threshold int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.beat.IsBeatRange(low, high, threshold)
}

// Band returns the latest energy of a sub-band, or -1 when out of range.
func (p *Pipeline) Band(subband int) float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.beat.Band(subband)
}

// BandEnergies copies every sub-band energy into dst.
func (p *Pipeline) BandEnergies(dst []float32) []float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.beat.Energies(dst)
}

// UpdateFFTSubbandSize resizes the beat detector; invalid sizes are ignored.
func (p *Pipeline) UpdateFFTSubbandSize(subbands int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.beat.UpdateFFTSubbandSize(subbands)
}

// UpdateEnergyHistorySize resizes the beat history; invalid sizes are ignored.
func (p *Pipeline) UpdateEnergyHistorySize(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.beat.UpdateEnergyHistorySize(size)
}

func (p *Pipeline) Subbands() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.beat.Subbands()
}
