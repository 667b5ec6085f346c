// SPDX-License-Identifier: MIT
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"audiotools/internal/analysis"
	"audiotools/internal/config"
	applog "audiotools/internal/log"
	"audiotools/pkg/build"
)

// globalFlags override the loaded configuration when set.
type globalFlags struct {
	configPath string
	frameSize  int
	window     string
	logLevel   string
}

// Execute runs the CLI with os.Args.
func Execute() error {
	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	buildInfo := build.Get()
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Audio feature extraction: spectra, onsets, beats and envelopes",
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to a YAML config file (default: ./config.yaml if present)")
	pf.IntVarP(&flags.frameSize, "frame-size", "n", 0, "Analysis frame size in samples")
	pf.StringVarP(&flags.window, "window", "w", "", "Analysis window: rectangular, hanning, hamming, blackman, tukey")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newAnalyzeCmd(flags),
		newEnvelopeCmd(flags),
		newOnsetsCmd(flags),
		newDevicesCmd(),
		newLiveCmd(flags),
	)

	return rootCmd
}

// loadConfig reads the config file, applies flag overrides and sets the log level.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	pf := cmd.Flags()
	if pf.Changed("frame-size") {
		cfg.Analysis.FrameSize = flags.frameSize
	}
	if pf.Changed("window") {
		cfg.Analysis.Window = flags.window
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		applog.Warnf("unknown log level %q, using %s", cfg.LogLevel, level)
	}
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)

	return cfg, nil
}

// pipelineOptions maps the analysis section onto a pipeline for a mono
// stream at sampleRate.
func pipelineOptions(cfg *config.Config, sampleRate float64) analysis.Options {
	return analysis.Options{
		FrameSize:      cfg.Analysis.FrameSize,
		SampleRate:     sampleRate,
		Window:         cfg.WindowType(),
		CosineFraction: cfg.Analysis.CosineFraction,
		Subbands:       cfg.Analysis.FFTSubbands,
		EnergyHistory:  cfg.Analysis.EnergyHistory,
		Envelope:       cfg.EnvelopeOptions(1, int(sampleRate)),
	}
}
