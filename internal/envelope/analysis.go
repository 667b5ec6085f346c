// SPDX-License-Identifier: MIT
package envelope

import (
	"errors"
	"fmt"
	"sync"

	applog "audiotools/internal/log"
)

// Status describes the outcome of an extraction.
type Status int

const (
	Success Status = iota
	ZeroAudioData
	InvalidChannels
	InvalidSampleRate
	InvalidFrameSize
	NotFound
)

var (
	ErrZeroAudioData     = errors.New("envelope: no audio data")
	ErrInvalidChannels   = errors.New("envelope: channel count must be positive")
	ErrInvalidSampleRate = errors.New("envelope: sample rate must be positive")
	ErrInvalidFrameSize  = errors.New("envelope: frame size must be positive")
	ErrNotFound          = errors.New("envelope: no envelope points produced")
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case ZeroAudioData:
		return "ZeroAudioData"
	case InvalidChannels:
		return "InvalidChannels"
	case InvalidSampleRate:
		return "InvalidSampleRate"
	case InvalidFrameSize:
		return "InvalidFrameSize"
	case NotFound:
		return "NotFound"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Err maps the status to its sentinel error, nil for Success.
func (s Status) Err() error {
	switch s {
	case Success:
		return nil
	case ZeroAudioData:
		return ErrZeroAudioData
	case InvalidChannels:
		return ErrInvalidChannels
	case InvalidSampleRate:
		return ErrInvalidSampleRate
	case InvalidFrameSize:
		return ErrInvalidFrameSize
	case NotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("envelope: unknown status %d", int(s))
	}
}

// Point is one decimated envelope value.
type Point struct {
	Amplitude float64 `json:"amplitude"`
	TimeSec   float64 `json:"time_sec"`
}

// Data is an envelope time series plus the mean amplitude of its points.
type Data struct {
	Points  []Point `json:"points"`
	Average float64 `json:"average"`
}

// Options configures an Analysis.
type Options struct {
	Channels   int     `yaml:"channels"`
	SampleRate int     `yaml:"sample_rate"`
	FrameSize  int     `yaml:"frame_size"` // input frames per emitted point
	AttackMs   float64 `yaml:"attack_ms"`
	ReleaseMs  float64 `yaml:"release_ms"`
	Mode       Mode    `yaml:"-"`
	Analog     bool    `yaml:"analog"`
}

// DefaultOptions returns stereo 44.1 kHz with a 10 ms attack, 100 ms release
// and one point per 1024 frames.
func DefaultOptions() Options {
	return Options{
		Channels:   2,
		SampleRate: 44100,
		FrameSize:  1024,
		AttackMs:   10,
		ReleaseMs:  100,
		Mode:       Squared,
		Analog:     true,
	}
}

// Analysis extracts envelopes from interleaved PCM. Each Extract call starts
// from a silent envelope. Safe for concurrent use.
type Analysis struct {
	mu   sync.Mutex
	opts Options
}

// NewAnalysis returns an Analysis configured with opts.
func NewAnalysis(opts Options) *Analysis {
	return &Analysis{opts: opts}
}

// Options returns the current configuration.
func (a *Analysis) Options() Options {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opts
}

// UpdateSampleRate changes the sample rate used for coefficients and timestamps.
func (a *Analysis) UpdateSampleRate(sampleRate int) {
	a.mu.Lock()
	a.opts.SampleRate = sampleRate
	a.mu.Unlock()
}

// UpdateFrameSize changes the decimation interval.
func (a *Analysis) UpdateFrameSize(frameSize int) {
	a.mu.Lock()
	a.opts.FrameSize = frameSize
	a.mu.Unlock()
}

// UpdateChannels changes the interleaved channel count.
func (a *Analysis) UpdateChannels(channels int) {
	a.mu.Lock()
	a.opts.Channels = channels
	a.mu.Unlock()
}

// Extract walks every frame of pcm, averaging channels to mono and feeding
// the follower. A point is emitted for every frame whose index is a multiple
// of FrameSize, carrying the envelope value at that frame and its time in
// seconds.
func (a *Analysis) Extract(pcm []float32) (Data, Status) {
	opts := a.Options()
	return Extract(pcm, opts)
}

// ExtractAsync runs Extract on its own goroutine. The returned channel
// receives exactly one result.
func (a *Analysis) ExtractAsync(pcm []float32) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		data, status := a.Extract(pcm)
		ch <- Result{Data: data, Status: status}
	}()
	return ch
}

// Result pairs extracted data with its status for asynchronous delivery.
type Result struct {
	Data   Data
	Status Status
}

// Extract is the stateless form of Analysis.Extract.
func Extract(pcm []float32, opts Options) (Data, Status) {
	switch {
	case len(pcm) == 0:
		applog.Warnf("Envelope: no audio data to analyse")
		return Data{}, ZeroAudioData
	case opts.Channels <= 0:
		applog.Errorf("Envelope: invalid number of channels %d, expected > 0", opts.Channels)
		return Data{}, InvalidChannels
	case opts.SampleRate <= 0:
		applog.Errorf("Envelope: invalid sample rate %d, expected > 0", opts.SampleRate)
		return Data{}, InvalidSampleRate
	case opts.FrameSize <= 0:
		applog.Errorf("Envelope: invalid frame size %d, expected > 0", opts.FrameSize)
		return Data{}, InvalidFrameSize
	}

	f := NewFollower(opts.Mode, opts.AttackMs, opts.ReleaseMs, float64(opts.SampleRate), opts.Analog)
	numFrames := len(pcm) / opts.Channels
	points := make([]Point, 0, numFrames/opts.FrameSize+1)
	var sum float64

	for frame := range numFrames {
		var sample float64
		base := frame * opts.Channels
		for ch := range opts.Channels {
			sample += float64(pcm[base+ch])
		}
		sample /= float64(opts.Channels)

		value := f.Process(sample)
		if frame%opts.FrameSize == 0 {
			points = append(points, Point{
				Amplitude: value,
				TimeSec:   float64(frame) / float64(opts.SampleRate),
			})
			sum += value
		}
	}

	if len(points) == 0 {
		applog.Errorf("Envelope: envelope was not found")
		return Data{}, NotFound
	}

	return Data{Points: points, Average: sum / float64(len(points))}, Success
}
