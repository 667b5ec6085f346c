// SPDX-License-Identifier: MIT
package onset

import (
	"errors"
	"fmt"

	"audiotools/internal/envelope"
	applog "audiotools/internal/log"
)

// Status describes the outcome of a detection pass.
type Status int

const (
	Success Status = iota
	NotDetected
	EnvelopeDataError
	BufferLengthError
	StepWaitingTimeError
	TimeoutWaitingTimeError
	ThresholdError
)

var (
	ErrNotDetected        = errors.New("onset: no onsets detected")
	ErrEmptyEnvelope      = errors.New("onset: envelope series is empty")
	ErrBufferLength       = errors.New("onset: buffer detection length must be at least 2")
	ErrStepWaitingTime    = errors.New("onset: step unit waiting time must be positive")
	ErrTimeoutWaitingTime = errors.New("onset: timeout waiting time must be positive")
	ErrThreshold          = errors.New("onset: threshold dividers must be positive and the decreasing delay non-negative")
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case NotDetected:
		return "NotDetected"
	case EnvelopeDataError:
		return "EnvelopeDataError"
	case BufferLengthError:
		return "BufferLengthError"
	case StepWaitingTimeError:
		return "StepWaitingTimeError"
	case TimeoutWaitingTimeError:
		return "TimeoutWaitingTimeError"
	case ThresholdError:
		return "ThresholdError"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Err maps the status to its sentinel error, nil for Success.
func (s Status) Err() error {
	switch s {
	case Success:
		return nil
	case NotDetected:
		return ErrNotDetected
	case EnvelopeDataError:
		return ErrEmptyEnvelope
	case BufferLengthError:
		return ErrBufferLength
	case StepWaitingTimeError:
		return ErrStepWaitingTime
	case TimeoutWaitingTimeError:
		return ErrTimeoutWaitingTime
	case ThresholdError:
		return ErrThreshold
	default:
		return fmt.Errorf("onset: unknown status %d", int(s))
	}
}

// Threshold controls how the adaptive threshold follows the envelope.
type Threshold struct {
	ExcessAverageDivider float64 `yaml:"excess_average_divider"` // candidate = avg + avg/ExcessAverageDivider
	UpdatingDivider      float64 `yaml:"updating_divider"`       // smoothing toward the candidate
	DecreasingDelay      float64 `yaml:"decreasing_delay"`       // seconds without an onset before decay starts
	DecreasingDivider    float64 `yaml:"decreasing_divider"`     // decay step
}

// A zero divider turns the threshold into Inf or NaN and every pass ends
// up NotDetected.
func (t Threshold) valid() bool {
	return t.ExcessAverageDivider > 0 && t.UpdatingDivider > 0 &&
		t.DecreasingDivider > 0 && t.DecreasingDelay >= 0
}

// Feature is an optional timing rule with a waiting time in seconds.
type Feature struct {
	Enabled     bool    `yaml:"enabled"`
	WaitingTime float64 `yaml:"waiting_time"`
}

// Options configures one detection pass.
type Options struct {
	BufferDetectionLength int       `yaml:"buffer_detection_length"`
	Threshold             Threshold `yaml:"threshold"`
	Timeout               Feature   `yaml:"timeout"`   // force an onset after WaitingTime of silence
	StepUnit              Feature   `yaml:"step_unit"` // suppress onsets closer than WaitingTime
	Multiplier            float64   `yaml:"multiplier"`
}

// DefaultOptions returns the tuning that works for most music material.
func DefaultOptions() Options {
	return Options{
		BufferDetectionLength: 48,
		Threshold: Threshold{
			ExcessAverageDivider: 3,
			UpdatingDivider:      1.5,
			DecreasingDelay:      3,
			DecreasingDivider:    1.25,
		},
		Timeout:    Feature{Enabled: false, WaitingTime: 1},
		StepUnit:   Feature{Enabled: false, WaitingTime: 0.25},
		Multiplier: 1,
	}
}

// Validate reports the status a pass with these options would abort with,
// or Success.
func (o Options) Validate() Status {
	if o.BufferDetectionLength < 2 {
		return BufferLengthError
	}
	if o.StepUnit.Enabled && o.StepUnit.WaitingTime <= 0 {
		return StepWaitingTimeError
	}
	if o.Timeout.Enabled && o.Timeout.WaitingTime <= 0 {
		return TimeoutWaitingTimeError
	}
	if !o.Threshold.valid() {
		return ThresholdError
	}
	return Success
}

// Result is the outcome of a detection pass. Onsets holds timestamps in
// seconds scaled by Options.Multiplier.
type Result struct {
	Onsets []float64
	Status Status
}

// Err returns the sentinel error for the result status.
func (r Result) Err() error {
	return r.Status.Err()
}

// detector is the state of a single pass. Nothing outlives Detect.
type detector struct {
	opts      Options
	history   []float64 // most recent envelope value at index 0
	threshold float64
	lastOnset float64
	onsets    []float64
}

// Detect runs the statistical onset detector over an envelope series. The
// history buffer is seeded with the series average, then for each point the
// threshold adapts to the recent history and the newest value is tested
// against it.
func Detect(data envelope.Data, opts Options) Result {
	if len(data.Points) == 0 {
		applog.Warnf("Onset: envelope series is empty")
		return Result{Status: EnvelopeDataError}
	}
	if status := opts.Validate(); status != Success {
		applog.Warnf("Onset: invalid options: %v", status.Err())
		return Result{Status: status}
	}

	d := &detector{
		opts:    opts,
		history: make([]float64, opts.BufferDetectionLength),
	}
	for i := range d.history {
		d.history[i] = data.Average
	}

	for _, p := range data.Points {
		d.step(p)
	}

	if len(d.onsets) == 0 {
		return Result{Status: NotDetected}
	}
	applog.Debugf("Onset: detected %d onsets over %d envelope points", len(d.onsets), len(data.Points))
	return Result{Onsets: d.onsets, Status: Success}
}

// DetectAsync runs Detect on its own goroutine and delivers the result on
// the returned channel, which receives exactly one value.
func DetectAsync(data envelope.Data, opts Options) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- Detect(data, opts)
	}()
	return ch
}

func (d *detector) step(p envelope.Point) {
	d.shift(p.Amplitude)
	d.updateThreshold()

	elapsed := p.TimeSec - d.lastOnset
	if elapsed > d.opts.Threshold.DecreasingDelay {
		d.threshold -= d.threshold / d.opts.Threshold.DecreasingDivider
	}

	if d.opts.Timeout.Enabled && elapsed > d.opts.Timeout.WaitingTime {
		d.record(p.TimeSec)
		d.lastOnset = p.TimeSec
		if d.opts.StepUnit.Enabled {
			d.lastOnset += d.opts.StepUnit.WaitingTime
		}
		return
	}

	ignore := d.opts.StepUnit.Enabled && elapsed < d.opts.StepUnit.WaitingTime
	if d.test(ignore, p.TimeSec) && !ignore {
		d.record(p.TimeSec)
	}
}

// shift drops the oldest history slot and stores v at index 0.
func (d *detector) shift(v float64) {
	copy(d.history[1:], d.history[:len(d.history)-1])
	d.history[0] = v
}

// updateThreshold moves the threshold toward avg + avg/ExcessAverageDivider.
// The average divides the sum of all slots by len-1, which weights it
// slightly above the true mean.
func (d *detector) updateThreshold() {
	var sum float64
	for _, v := range d.history {
		sum += v
	}
	avg := sum / float64(len(d.history)-1)
	candidate := avg + avg/d.opts.Threshold.ExcessAverageDivider

	if d.lastOnset <= 0 || candidate <= 0 {
		d.threshold = (1.0 / 8.0) / d.opts.Threshold.ExcessAverageDivider
		return
	}
	d.threshold += (candidate - d.threshold) / d.opts.Threshold.UpdatingDivider
}

// test reports whether the newest value exceeds the threshold. In ignore mode
// the last-onset time is left alone.
func (d *detector) test(ignore bool, t float64) bool {
	if d.history[0] > d.threshold {
		if !ignore {
			d.lastOnset = t
		}
		return true
	}
	return false
}

func (d *detector) record(t float64) {
	d.onsets = append(d.onsets, t*d.opts.Multiplier)
}
