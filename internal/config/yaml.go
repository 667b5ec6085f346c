// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"audiotools/internal/envelope"
	applog "audiotools/internal/log"
	"audiotools/internal/onset"
	"audiotools/internal/window"
	"audiotools/pkg/bitint"
)

var ErrInvalid = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"`
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Envelope  EnvelopeConfig  `yaml:"envelope"`
	Onset     onset.Options   `yaml:"onset"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds live capture settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Hz; also the default for sources without a rate.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Capture buffer size in frames.
	LowLatency      bool    `yaml:"low_latency"`
	InputChannels   int     `yaml:"input_channels"`
	GateEnabled     bool    `yaml:"gate_enabled"`
	GateThreshold   float64 `yaml:"gate_threshold"` // Peak amplitude in [0, 1] below which buffers are skipped.
}

// AnalysisConfig configures the frame pipeline.
type AnalysisConfig struct {
	FrameSize      int     `yaml:"frame_size"`
	Window         string  `yaml:"window"`          // rectangular, hanning, hamming, blackman, tukey
	CosineFraction float64 `yaml:"cosine_fraction"` // Tukey only, in [0, 1]
	FFTSubbands    int     `yaml:"fft_subbands"`
	EnergyHistory  int     `yaml:"energy_history"`
}

// EnvelopeConfig configures envelope extraction.
type EnvelopeConfig struct {
	AttackMs  float64 `yaml:"attack_ms"`
	ReleaseMs float64 `yaml:"release_ms"`
	Mode      string  `yaml:"mode"` // peak or squared
	Analog    bool    `yaml:"analog"`
	FrameSize int     `yaml:"frame_size"` // input frames per envelope point
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	Format    string `yaml:"format"`
	BitDepth  int    `yaml:"bit_depth"` // 8, 16, 24 or 32
}

// TransportConfig holds settings for sending analysis output over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"`
}

// Default returns the built-in configuration.
func Default() Config {
	envDefaults := envelope.DefaultOptions()
	return Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
			GateEnabled:     true,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			FrameSize:      DefaultFramesPerBuffer,
			Window:         DefaultWindow,
			CosineFraction: DefaultCosineFraction,
			FFTSubbands:    DefaultFFTSubbands,
			EnergyHistory:  DefaultEnergyHistory,
		},
		Envelope: EnvelopeConfig{
			AttackMs:  envDefaults.AttackMs,
			ReleaseMs: envDefaults.ReleaseMs,
			Mode:      envDefaults.Mode.String(),
			Analog:    envDefaults.Analog,
			FrameSize: envDefaults.FrameSize,
		},
		Onset: onset.DefaultOptions(),
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			Format:    "wav",
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPAddress,
			UDPSendInterval:  DefaultUDPInterval,
			WebSocketAddress: DefaultWebSocketAddr,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. Environment overrides are applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "audiotools.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every range the pipeline and detectors rely on.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		fail("log_level '%s' is not one of debug, info, warn, error, fatal", c.LogLevel)
	}

	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		fail("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		fail("audio.frames_per_buffer %d outside (0, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels <= 0 {
		fail("audio.input_channels must be positive, got %d", a.InputChannels)
	}
	if a.InputDevice < MinDeviceID {
		fail("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		fail("audio.gate_threshold %v outside [0, 1]", a.GateThreshold)
	}

	an := c.Analysis
	if an.FrameSize <= 0 {
		fail("analysis.frame_size must be positive, got %d", an.FrameSize)
	} else if !bitint.IsSmooth(an.FrameSize, FastFactorLimit) {
		applog.Warnf("configuration: analysis.frame_size %d has prime factor %d; the FFT falls back to the generic butterfly (try %d)",
			an.FrameSize, bitint.LargestPrimeFactor(an.FrameSize), bitint.NextPowerOfTwo(an.FrameSize))
	}
	if _, err := window.ParseType(an.Window); err != nil {
		fail("analysis.window: %v", err)
	}
	if an.CosineFraction < 0 || an.CosineFraction > 1 {
		fail("analysis.cosine_fraction %v outside [0, 1]", an.CosineFraction)
	}
	if an.FFTSubbands <= 0 {
		fail("analysis.fft_subbands must be positive, got %d", an.FFTSubbands)
	}
	if an.EnergyHistory <= 0 {
		fail("analysis.energy_history must be positive, got %d", an.EnergyHistory)
	}

	e := c.Envelope
	if e.AttackMs < 0 || e.ReleaseMs < 0 {
		fail("envelope attack/release must not be negative, got %v/%v", e.AttackMs, e.ReleaseMs)
	}
	if e.FrameSize <= 0 {
		fail("envelope.frame_size must be positive, got %d", e.FrameSize)
	}
	if _, err := envelope.ParseMode(e.Mode); err != nil {
		fail("envelope.mode: %v", err)
	}

	th := c.Onset.Threshold
	if th.ExcessAverageDivider <= 0 {
		fail("onset.threshold.excess_average_divider must be positive, got %v", th.ExcessAverageDivider)
	}
	if th.UpdatingDivider <= 0 {
		fail("onset.threshold.updating_divider must be positive, got %v", th.UpdatingDivider)
	}
	if th.DecreasingDivider <= 0 {
		fail("onset.threshold.decreasing_divider must be positive, got %v", th.DecreasingDivider)
	}
	if th.DecreasingDelay < 0 {
		fail("onset.threshold.decreasing_delay must not be negative, got %v", th.DecreasingDelay)
	}
	if status := c.Onset.Validate(); status != onset.Success && status != onset.ThresholdError {
		fail("onset: %v", status.Err())
	}

	// Checked even when recording is off: live --record enables it later.
	switch c.Recording.BitDepth {
	case 8, 16, 24, 32:
	default:
		fail("recording.bit_depth must be 8, 16, 24 or 32, got %d", c.Recording.BitDepth)
	}

	t := c.Transport
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			fail("transport.udp_target_address '%s' appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			fail("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		fail("transport.websocket_address must be set when websocket is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// WindowType returns the parsed analysis window, Hanning if unparseable.
func (c *Config) WindowType() window.Type {
	t, _ := window.ParseType(c.Analysis.Window)
	return t
}

// EnvelopeOptions builds extraction options for a source with the given layout.
func (c *Config) EnvelopeOptions(channels, sampleRate int) envelope.Options {
	mode, _ := envelope.ParseMode(c.Envelope.Mode)
	return envelope.Options{
		Channels:   channels,
		SampleRate: sampleRate,
		FrameSize:  c.Envelope.FrameSize,
		AttackMs:   c.Envelope.AttackMs,
		ReleaseMs:  c.Envelope.ReleaseMs,
		Mode:       mode,
		Analog:     c.Envelope.Analog,
	}
}

func lookupBool(key string, dst *bool) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
			applog.Debugf("configuration: overriding from %s: %v", key, b)
		}
	}
}

func lookupInt(key string, dst *int) {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
			applog.Debugf("configuration: overriding from %s: %d", key, n)
		}
	}
}

func lookupString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		applog.Debugf("configuration: overriding from %s: %s", key, val)
	}
}

// applyEnvOverrides reads ENV_* variables. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	lookupBool("ENV_DEBUG", &c.Debug)
	lookupString("ENV_LOG_LEVEL", &c.LogLevel)

	lookupInt("ENV_FRAME_SIZE", &c.Analysis.FrameSize)
	lookupString("ENV_WINDOW", &c.Analysis.Window)
	lookupInt("ENV_INPUT_DEVICE", &c.Audio.InputDevice)

	lookupBool("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	lookupString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			applog.Debugf("configuration: overriding from ENV_UDP_SEND_INTERVAL: %s", dur)
		}
	}
	lookupBool("ENV_WEBSOCKET_ENABLED", &c.Transport.WebSocketEnabled)
}
