// SPDX-License-Identifier: MIT
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"audiotools/internal/config"
	"audiotools/internal/envelope"
	"audiotools/internal/onset"
	"audiotools/internal/pcm"
)

func newEnvelopeCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "envelope FILE.wav",
		Short: "Extract the amplitude envelope of a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			data, err := extractEnvelope(cfg, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(data)
			}
			fmt.Fprintf(out, "%d points, average %.6f\n", len(data.Points), data.Average)
			for _, p := range data.Points {
				fmt.Fprintf(out, "%10.4f  %.6f\n", p.TimeSec, p.Amplitude)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the envelope as JSON")
	return cmd
}

func newOnsetsCmd(flags *globalFlags) *cobra.Command {
	var (
		asJSON bool
		opts   onsetFlags
	)

	cmd := &cobra.Command{
		Use:   "onsets FILE.wav",
		Short: "Detect onsets from the amplitude envelope of a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			opts.apply(cmd, &cfg.Onset)

			data, err := extractEnvelope(cfg, args[0])
			if err != nil {
				return err
			}
			result := <-onset.DetectAsync(data, cfg.Onset)
			if result.Status != onset.Success && result.Status != onset.NotDetected {
				return result.Err()
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(struct {
					Onsets []float64 `json:"onsets"`
					Status string    `json:"status"`
				}{Onsets: nonNil(result.Onsets), Status: result.Status.String()})
			}
			fmt.Fprintf(out, "%d onset(s)\n", len(result.Onsets))
			for _, t := range result.Onsets {
				fmt.Fprintf(out, "%.4f\n", t)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&asJSON, "json", false, "Print onsets as JSON")
	f.IntVar(&opts.bufferLength, "buffer-length", 0, "Envelope history used for the adaptive threshold")
	f.Float64Var(&opts.multiplier, "multiplier", 0, "Scale applied to reported onset times")
	f.Float64Var(&opts.stepUnit, "step-unit", 0, "Suppress onsets closer than this many seconds")
	f.Float64Var(&opts.timeout, "timeout", 0, "Force an onset after this many seconds without one")
	return cmd
}

// onsetFlags override the onset section of the config when set.
type onsetFlags struct {
	bufferLength int
	multiplier   float64
	stepUnit     float64
	timeout      float64
}

func (o onsetFlags) apply(cmd *cobra.Command, dst *onset.Options) {
	f := cmd.Flags()
	if f.Changed("buffer-length") {
		dst.BufferDetectionLength = o.bufferLength
	}
	if f.Changed("multiplier") {
		dst.Multiplier = o.multiplier
	}
	if f.Changed("step-unit") {
		dst.StepUnit = onset.Feature{Enabled: o.stepUnit > 0, WaitingTime: o.stepUnit}
	}
	if f.Changed("timeout") {
		dst.Timeout = onset.Feature{Enabled: o.timeout > 0, WaitingTime: o.timeout}
	}
}

func extractEnvelope(cfg *config.Config, path string) (envelope.Data, error) {
	src, err := pcm.LoadWAV(path)
	if err != nil {
		return envelope.Data{}, err
	}
	info := src.Info()
	data, status := envelope.Extract(src.Samples(), cfg.EnvelopeOptions(info.Channels, info.SampleRate))
	if status != envelope.Success {
		return envelope.Data{}, fmt.Errorf("%s: %w", path, status.Err())
	}
	return data, nil
}

func nonNil(x []float64) []float64 {
	if x == nil {
		return []float64{}
	}
	return x
}
