// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the capture engine and the analysis pipeline.
const (
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 1024
	DefaultInputChannels   = 2
	DefaultWindow          = "hanning"
	DefaultCosineFraction  = 0.5
	DefaultFFTSubbands     = 32
	DefaultEnergyHistory   = 41
	DefaultGateThreshold   = 0.001
	DefaultBitDepth        = 16
	DefaultUDPAddress      = "127.0.0.1:9090"
	DefaultUDPInterval     = 33 * time.Millisecond
	DefaultWebSocketAddr   = ":8080"

	// Hardware and processing limits
	MinDeviceID     = -1 // -1 represents system default device
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192

	// Frame sizes whose prime factors stay at or below this run on specialised butterflies.
	FastFactorLimit = 5

	DefaultMaxConsecutiveWriteFailures = 5
)
