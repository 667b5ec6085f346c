// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"

	"audiotools/internal/transport"
)

// FrequencyBand is a named Hz range of the magnitude spectrum.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands covers sub-bass to treble. The top band is open to Nyquist.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// BandEnergyMessage is sent to the transport once per Process call.
type BandEnergyMessage struct {
	Type   string             `json:"type"`
	Energy map[string]float64 `json:"energy"`
}

// BandEnergyProcessor reduces the provider's magnitude spectrum to RMS energy per band.
type BandEnergyProcessor struct {
	transport transport.Transport
	provider  FFTResultProvider
	bands     []FrequencyBand
	scale     float64

	magnitudes []float32
	energy     []float64
	bins       []int
}

// NewBandEnergyProcessor uses DefaultBands when bands is empty. Values are scaled and
// clamped to [0, 1]; a scale of 0 leaves them unscaled.
func NewBandEnergyProcessor(t transport.Transport, provider FFTResultProvider, bands []FrequencyBand, scale float64) (*BandEnergyProcessor, error) {
	if provider == nil {
		return nil, errors.New("band energy processor requires an FFT result provider")
	}
	if len(bands) == 0 {
		bands = DefaultBands
	}
	if scale == 0 {
		scale = 1
	}

	logger.Infof("Initializing BandEnergyProcessor with %d bands", len(bands))
	return &BandEnergyProcessor{
		transport: t,
		provider:  provider,
		bands:     bands,
		scale:     scale,
		energy:    make([]float64, len(bands)),
		bins:      make([]int, len(bands)),
	}, nil
}

// Energies recomputes and returns the per-band values in band order. The slice is reused.
func (p *BandEnergyProcessor) Energies() []float64 {
	n := p.provider.GetFFTSize() / 2
	if len(p.magnitudes) != n {
		p.magnitudes = make([]float32, n)
	}
	if err := p.provider.GetMagnitudesInto(p.magnitudes); err != nil {
		// Frame size changed between the two calls; the next call catches up.
		logger.Debugf("Band energy skipped: %v", err)
		clear(p.energy)
		return p.energy
	}

	clear(p.energy)
	clear(p.bins)
	for i, m := range p.magnitudes {
		freq := p.provider.GetFrequencyForBin(i)
		for b, band := range p.bands {
			if freq >= band.LowHz && freq < band.HighHz {
				p.energy[b] += float64(m) * float64(m)
				p.bins[b]++
				break
			}
		}
	}

	for b := range p.energy {
		if p.bins[b] > 0 {
			p.energy[b] = math.Min(1, math.Sqrt(p.energy[b]/float64(p.bins[b]))*p.scale)
		}
	}
	return p.energy
}

// Process computes band energies and sends them to the transport.
func (p *BandEnergyProcessor) Process() {
	energy := p.Energies()
	if p.transport == nil {
		return
	}

	msg := BandEnergyMessage{Type: "band_energy", Energy: make(map[string]float64, len(p.bands))}
	for b, band := range p.bands {
		msg.Energy[band.Name] = energy[b]
	}
	if err := p.transport.Send(msg); err != nil {
		logger.Errorf("BandEnergyProcessor: error sending band energy: %v", err)
	}
}
