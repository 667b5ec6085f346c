// SPDX-License-Identifier: MIT
/*
Package audio captures live input through PortAudio and feeds it to an
analysis processor:
- float32 capture with buffers allocated up front
- branchless peak gate that skips silent buffers
- mono downmix before analysis
- optional WAV recording with atomic state

The PortAudio callback runs on a locked OS thread. Frame listeners run on
the same thread after the processor, so they must not block.
*/
package audio

import (
	"errors"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"audiotools/internal/analysis"
	"audiotools/internal/config"
	applog "audiotools/internal/log"
	"audiotools/internal/pcm"
)

var (
	ErrNoProcessor     = errors.New("audio: no processor")
	ErrInvalidChannels = errors.New("audio: input channels must be positive")
	ErrInvalidBuffer   = errors.New("audio: frames per buffer out of range")
)

var engineLog = applog.With("Engine")

// FrameListener runs after each buffer that passed the gate.
type FrameListener func()

type Engine struct {
	config *config.Config

	channels        int
	framesPerBuffer int
	sampleRate      float64

	inputBuffer  []float32
	monoBuffer   []float32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	processor analysis.AudioProcessor

	listenerMu sync.RWMutex
	listeners  []FrameListener

	gateEnabled   bool
	gateThreshold float32

	framesProcessed atomic.Uint64
	framesGated     atomic.Uint64

	// recordMu guards the fields below isRecording. The callback only
	// TryLocks it, so a stopping recording costs the audio thread one
	// skipped write instead of a wait.
	isRecording  int32
	recordMu     sync.Mutex
	outputFile   *os.File
	wavEncoder   *wav.Encoder
	sampleBuf    *audio.IntBuffer
	sampleScale  float64
	sampleOffset int
	writeFails   int
}

// NewEngine resolves the configured input device and prepares capture buffers.
func NewEngine(cfg *config.Config, processor analysis.AudioProcessor) (*Engine, error) {
	engine, err := newEngine(cfg, processor)
	if err != nil {
		return nil, err
	}

	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	engine.inputDevice = inputDevice

	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	engineLog.Infof("input device %q, %d channel(s), %d frames @ %.0f Hz",
		inputDevice.Name, engine.channels, engine.framesPerBuffer, engine.sampleRate)
	return engine, nil
}

// newEngine builds an Engine without touching PortAudio.
func newEngine(cfg *config.Config, processor analysis.AudioProcessor) (*Engine, error) {
	if processor == nil {
		return nil, ErrNoProcessor
	}
	channels := cfg.Audio.InputChannels
	if channels <= 0 {
		return nil, ErrInvalidChannels
	}
	frames := cfg.Audio.FramesPerBuffer
	if frames <= 0 || frames > config.MaxBufferFrames {
		return nil, ErrInvalidBuffer
	}

	e := &Engine{
		config:          cfg,
		channels:        channels,
		framesPerBuffer: frames,
		sampleRate:      cfg.Audio.SampleRate,
		inputBuffer:     make([]float32, frames*channels),
		monoBuffer:      make([]float32, frames),
		processor:       processor,
		gateEnabled:     cfg.Audio.GateEnabled,
	}
	e.SetGateThreshold(cfg.Audio.GateThreshold)
	return e, nil
}

// AddListener registers fn to run after every processed buffer.
func (e *Engine) AddListener(fn FrameListener) {
	e.listenerMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenerMu.Unlock()
}

// Stats reports how many buffers were analysed and how many the gate dropped.
func (e *Engine) Stats() (processed, gated uint64) {
	return e.framesProcessed.Load(), e.framesGated.Load()
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: e.framesPerBuffer,
		SampleRate:      e.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return err
	}

	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

// processInputStream is the PortAudio callback. It only touches buffers
// allocated in newEngine.
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n := copy(e.inputBuffer, in)
	buffer := e.inputBuffer[:n]
	e.processBuffer(buffer)

	if atomic.LoadInt32(&e.isRecording) == 1 && e.recordMu.TryLock() {
		if e.wavEncoder != nil {
			e.writeRecording(buffer)
		}
		e.recordMu.Unlock()
	}
}

// processBuffer gates, downmixes and analyses one interleaved buffer.
func (e *Engine) processBuffer(buffer []float32) {
	if len(buffer) == 0 {
		return
	}
	if e.gateEnabled && peakAmplitude(buffer) <= e.gateThreshold {
		e.framesGated.Add(1)
		return
	}

	var mono []float32
	if e.channels == 1 {
		mono = buffer
	} else {
		mono = pcm.Downmix(e.monoBuffer, buffer, e.channels)
	}

	e.processor.Process(mono)
	e.framesProcessed.Add(1)

	e.listenerMu.RLock()
	for _, fn := range e.listeners {
		fn()
	}
	e.listenerMu.RUnlock()
}
