// SPDX-License-Identifier: MIT
package analysis

// AudioProcessor is fed mono float frames, usually from the real-time capture callback.
type AudioProcessor interface {
	Process(frame []float32)
}

// ClosableProcessor combines AudioProcessor with a Close method for resource cleanup.
type ClosableProcessor interface {
	AudioProcessor
	Close() error
}

// FFTResultProvider decouples spectrum consumers (band energy, UDP publisher, TUI) from the
// pipeline that produces the spectrum.
type FFTResultProvider interface {
	GetMagnitudes() []float32                // GetMagnitudes returns a copy of the latest magnitude spectrum.
	GetMagnitudesInto(dest []float32) error  // GetMagnitudesInto copies without allocating; len(dest) must match.
	GetFrequencyForBin(binIndex int) float64 // GetFrequencyForBin returns the centre frequency (Hz) of a bin.
	GetFFTSize() int                         // GetFFTSize returns the transform size (frame size).
	GetSampleRate() float64                  // GetSampleRate returns the sample rate used for bin mapping.
}

// FeatureProvider exposes the per-frame scalar features of the latest frame.
type FeatureProvider interface {
	Features() Features
}
