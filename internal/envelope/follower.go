// SPDX-License-Identifier: MIT
//
// Package envelope smooths PCM into a slow amplitude envelope with separate
// attack and release times, and decimates it into a time series suitable for
// onset detection.
package envelope

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects how a sample is rectified before smoothing.
type Mode int

const (
	Peak    Mode = iota // |x|
	Squared             // x²
)

func (m Mode) String() string {
	switch m {
	case Peak:
		return "Peak"
	case Squared:
		return "Squared"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a name (case-insensitive) to a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "peak":
		return Peak, nil
	case "squared", "ms", "rms":
		return Squared, nil
	default:
		return Squared, fmt.Errorf("unknown envelope mode: '%s'", name)
	}
}

// Time constants for the attack/release decay. The analog constant reaches
// 63% of the target within the configured time, the digital one 99%.
const (
	AnalogTimeConstant  = 1.00239343
	DigitalTimeConstant = 4.60517019
)

// smallestNormal is the smallest normal float32. Values closer to zero are
// flushed so the recurrence never decays through denormals.
const smallestNormal = 0x1p-126

// Coefficient converts a time in milliseconds to a per-sample decay factor
// exp(-1000·tc/(ms·sampleRate)). Non-positive inputs give 0, meaning the
// envelope jumps straight to the target.
func Coefficient(timeMs, sampleRate float64, analog bool) float64 {
	if timeMs <= 0 || sampleRate <= 0 {
		return 0
	}
	tc := DigitalTimeConstant
	if analog {
		tc = AnalogTimeConstant
	}
	return math.Exp(-1000 * tc / (timeMs * sampleRate))
}

// Follower is a one-pole attack/release envelope follower. The zero value
// follows instantly in Peak mode.
type Follower struct {
	mode    Mode
	attack  float64
	release float64
	value   float64
}

// NewFollower returns a follower with precomputed coefficients.
func NewFollower(mode Mode, attackMs, releaseMs, sampleRate float64, analog bool) *Follower {
	return &Follower{
		mode:    mode,
		attack:  Coefficient(attackMs, sampleRate, analog),
		release: Coefficient(releaseMs, sampleRate, analog),
	}
}

// Process feeds one mono sample and returns the updated envelope in [0,1].
func (f *Follower) Process(x float64) float64 {
	var v float64
	if f.mode == Peak {
		v = math.Abs(x)
	} else {
		v = x * x
	}

	coeff := f.release
	if v > f.value {
		coeff = f.attack
	}

	next := coeff*(f.value-v) + v
	if next > -smallestNormal && next < smallestNormal {
		next = 0
	}
	f.value = min(max(next, 0), 1)
	return f.value
}

// Value returns the current envelope.
func (f *Follower) Value() float64 { return f.value }

// Reset sets the envelope back to zero.
func (f *Follower) Reset() { f.value = 0 }

// Coefficients returns the attack and release decay factors.
func (f *Follower) Coefficients() (attack, release float64) {
	return f.attack, f.release
}
