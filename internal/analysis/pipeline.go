// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"audiotools/internal/beat"
	"audiotools/internal/envelope"
	"audiotools/internal/fft"
	applog "audiotools/internal/log"
	"audiotools/internal/onset"
	"audiotools/internal/window"
)

var (
	ErrInvalidFrameSize  = errors.New("analysis: frame size must be positive")
	ErrInvalidSampleRate = errors.New("analysis: sample rate must be positive")
	ErrEmptyFrame        = errors.New("analysis: empty audio frame")
	ErrClosed            = errors.New("analysis: pipeline closed")
	ErrMagnitudeLength   = errors.New("analysis: destination length does not match spectrum")
)

const submitQueueSize = 16

var logger = applog.With("Analysis")

// Options configures a Pipeline.
type Options struct {
	FrameSize      int
	SampleRate     float64
	Window         window.Type
	CosineFraction float64
	Subbands       int
	EnergyHistory  int
	Envelope       envelope.Options
}

// DefaultOptions returns a 1024-point Hanning pipeline at 44.1 kHz.
func DefaultOptions() Options {
	return Options{
		FrameSize:      1024,
		SampleRate:     44100,
		Window:         window.Hanning,
		CosineFraction: window.DefaultCosineFraction,
		Subbands:       beat.DefaultSubbands,
		EnergyHistory:  beat.DefaultEnergyHistory,
		Envelope:       envelope.DefaultOptions(),
	}
}

// workspace holds every per-frame buffer. All of it is replaced together on a frame size change.
type workspace struct {
	frame      []float32   // latest frame, unwindowed
	window     []float32   // window coefficients
	input      []complex64 // windowed frame, FFT input
	output     []complex64 // FFT output
	real       []float32
	imag       []float32
	magnitudes []float32 // first N/2 bins
}

type job struct {
	frame   []float32
	runBeat bool
	barrier bool
	done    chan error
}

// Pipeline owns one analysis session: window, FFT state, spectra, onset-function memories,
// beat detector history and envelope extraction. ProcessAudioFrame and every resize are
// serialized by mu; accessors take the read side.
type Pipeline struct {
	mu             sync.RWMutex
	frameSize      int
	sampleRate     float64
	windowType     window.Type
	cosineFraction float64
	fftState       *fft.State
	ws             workspace
	processed      bool

	onsets   *onset.Functions
	beat     *beat.Detector
	envelope *envelope.Analysis

	jobs      chan job
	submitMu  sync.Mutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var (
	_ AudioProcessor    = (*Pipeline)(nil)
	_ ClosableProcessor = (*Pipeline)(nil)
	_ FFTResultProvider = (*Pipeline)(nil)
	_ FeatureProvider   = (*Pipeline)(nil)
)

// NewPipeline builds and initializes a pipeline and starts its submission worker.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("%w, got %f", ErrInvalidSampleRate, opts.SampleRate)
	}

	envOpts := opts.Envelope
	envOpts.Channels = 1
	envOpts.SampleRate = int(opts.SampleRate)

	p := &Pipeline{
		sampleRate: opts.SampleRate,
		beat:       beat.NewDetector(opts.Subbands, opts.EnergyHistory),
		envelope:   envelope.NewAnalysis(envOpts),
		jobs:       make(chan job, submitQueueSize),
	}
	if err := p.Initialize(opts.FrameSize, opts.Window, opts.CosineFraction); err != nil {
		return nil, err
	}

	p.wg.Add(1)
	go p.worker()
	return p, nil
}

// Initialize resets the session for a frame size and window. The beat detector keeps its
// configured sub-band and history sizes but loses its history.
func (p *Pipeline) Initialize(frameSize int, windowType window.Type, cosineFraction float64) error {
	if frameSize <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidFrameSize, frameSize)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.windowType = windowType
	p.cosineFraction = cosineFraction
	p.onsets = onset.NewFunctions(frameSize)
	p.beat = beat.NewDetector(p.beat.Subbands(), p.beat.HistorySize())
	p.frameSize = 0
	p.ws = workspace{}
	p.processed = false
	if err := p.resize(frameSize); err != nil {
		return err
	}

	logger.Infof("Initialized pipeline (Frame: %d, SampleRate: %.1f Hz, Window: %v, FFT factors: %v)",
		frameSize, p.sampleRate, windowType, p.fftState.Factors())
	return nil
}

// UpdateFrameSize rebuilds the window and FFT state and resizes every per-frame buffer.
// Calling it with the current size is a no-op.
func (p *Pipeline) UpdateFrameSize(frameSize int) error {
	if frameSize <= 0 {
		logger.Errorf("Ignoring frame size %d, keeping %d", frameSize, p.FrameSize())
		return fmt.Errorf("%w, got %d", ErrInvalidFrameSize, frameSize)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resize(frameSize)
}

// resize requires mu held for writing.
func (p *Pipeline) resize(n int) error {
	if n == p.frameSize && p.fftState != nil {
		return nil
	}

	p.fftState = nil
	state, err := fft.Alloc(n, false)
	if err != nil {
		return fmt.Errorf("could not allocate FFT state: %w", err)
	}

	old := p.ws
	p.ws = workspace{
		frame:      make([]float32, n),
		window:     window.Build(n, p.windowType, p.cosineFraction),
		input:      make([]complex64, n),
		output:     make([]complex64, n),
		real:       make([]float32, n),
		imag:       make([]float32, n),
		magnitudes: make([]float32, n/2),
	}
	// Zero-extend: keep what fits of the previous frame and spectra.
	copy(p.ws.frame, old.frame)
	copy(p.ws.real, old.real)
	copy(p.ws.imag, old.imag)
	copy(p.ws.magnitudes, old.magnitudes)

	p.fftState = state
	p.frameSize = n
	p.onsets.UpdateFrameSize(n)
	p.envelope.UpdateFrameSize(n)

	logger.Debugf("Frame size set to %d (magnitude bins: %d)", n, n/2)
	return nil
}

// ProcessAudioFrame windows and transforms one mono frame. A frame of a different length
// resizes the pipeline first. With runBeat the magnitude spectrum also feeds the beat detector.
func (p *Pipeline) ProcessAudioFrame(frame []float32, runBeat bool) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(frame) != p.frameSize {
		if err := p.resize(len(frame)); err != nil {
			return err
		}
	}

	ws := &p.ws
	copy(ws.frame, frame)
	for i, s := range ws.frame {
		ws.input[i] = complex(s*ws.window[i], 0)
	}

	if err := p.fftState.Execute(ws.input, ws.output); err != nil {
		return fmt.Errorf("fft: %w", err)
	}

	for i, c := range ws.output {
		ws.real[i] = real(c)
		ws.imag[i] = imag(c)
	}
	for i := range ws.magnitudes {
		re, im := float64(ws.real[i]), float64(ws.imag[i])
		ws.magnitudes[i] = float32(math.Sqrt(re*re + im*im))
	}

	if runBeat {
		p.beat.ProcessMagnitude(ws.magnitudes)
	}
	p.processed = true
	return nil
}

// Process implements AudioProcessor. Errors are logged, not returned.
func (p *Pipeline) Process(frame []float32) {
	if err := p.ProcessAudioFrame(frame, true); err != nil {
		logger.Errorf("Dropping frame of %d samples: %v", len(frame), err)
	}
}

// Submit queues a copy of frame for processing on the pipeline worker. Frames are processed in
// submission order; the returned channel receives exactly one result.
func (p *Pipeline) Submit(frame []float32, runBeat bool) <-chan error {
	return p.enqueue(job{frame: append([]float32(nil), frame...), runBeat: runBeat})
}

// Wait blocks until every frame submitted so far has been processed.
func (p *Pipeline) Wait() error {
	return <-p.enqueue(job{barrier: true})
}

func (p *Pipeline) enqueue(j job) <-chan error {
	j.done = make(chan error, 1)

	p.submitMu.Lock()
	defer p.submitMu.Unlock()
	if p.closed {
		j.done <- ErrClosed
		return j.done
	}
	p.jobs <- j
	return j.done
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		if j.barrier {
			j.done <- nil
			continue
		}
		j.done <- p.ProcessAudioFrame(j.frame, j.runBeat)
	}
}

// Close drains queued frames and stops the worker. Safe to call more than once.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.submitMu.Lock()
		p.closed = true
		close(p.jobs)
		p.submitMu.Unlock()

		p.wg.Wait()
		logger.Debugf("Pipeline closed")
	})
	return nil
}
