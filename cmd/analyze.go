// SPDX-License-Identifier: MIT
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"audiotools/internal/analysis"
	"audiotools/internal/config"
	"audiotools/internal/pcm"
)

// frameRecord is one line of `analyze --frames` output.
type frameRecord struct {
	Index    int               `json:"index"`
	Time     float64           `json:"time"`
	Features analysis.Features `json:"features"`
	Onset    onsetValues       `json:"onset"`
}

type onsetValues struct {
	EnergyDifference          float32 `json:"energyDifference"`
	SpectralDifference        float32 `json:"spectralDifference"`
	SpectralDifferenceHWR     float32 `json:"spectralDifferenceHWR"`
	ComplexSpectralDifference float32 `json:"complexSpectralDifference"`
	HighFrequencyContent      float32 `json:"highFrequencyContent"`
}

// Summary is the per-feature statistics over every analysed frame.
type Summary struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Report is the output of `analyze`.
type Report struct {
	File       string         `json:"file"`
	SampleRate int            `json:"sampleRate"`
	Channels   int            `json:"channels"`
	Duration   float64        `json:"duration"`
	FrameSize  int            `json:"frameSize"`
	Frames     int            `json:"frames"`
	Beats      map[string]int `json:"beats"`
	Features   []Summary      `json:"features"`
}

var summaryOrder = []string{
	"rms", "peak", "zcr", "centroidHz", "flatness", "crest", "rolloff", "kurtosis",
	"energyDifference", "spectralDifference", "spectralDifferenceHWR",
	"complexSpectralDifference", "highFrequencyContent",
}

func newAnalyzeCmd(flags *globalFlags) *cobra.Command {
	var (
		asJSON     bool
		perFrame   bool
		start, end float64
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE.wav",
		Short: "Run the frame pipeline over a WAV file and summarise every feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			src, err := pcm.LoadWAV(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("start") || cmd.Flags().Changed("end") {
				if src, err = sliceSource(src, start, end); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			var frameOut *json.Encoder
			if perFrame {
				frameOut = json.NewEncoder(out)
			}
			report, err := analyzeSource(cfg, src, frameOut)
			if err != nil {
				return err
			}
			if perFrame {
				return nil
			}
			report.File = args[0]

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return writeReport(out, report)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	cmd.Flags().BoolVar(&perFrame, "frames", false, "Print one JSON record per frame instead of a summary")
	cmd.Flags().Float64Var(&start, "start", 0, "Start time in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "End time in seconds (default: end of file)")
	return cmd
}

// sliceSource narrows src to [start, end) seconds.
func sliceSource(src *pcm.Buffer, start, end float64) (*pcm.Buffer, error) {
	info := src.Info()
	if end == 0 {
		end = info.Duration
	}
	first, last, err := pcm.FrameRange(info, start, end)
	if err != nil {
		return nil, err
	}
	samples, err := src.GetFrame(first, last)
	if err != nil {
		return nil, err
	}
	return pcm.NewBuffer(samples, info.Channels, info.SampleRate)
}

// analyzeSource walks src frame by frame. When frameOut is set each frame is
// encoded to it as it is processed.
func analyzeSource(cfg *config.Config, src pcm.Source, frameOut *json.Encoder) (*Report, error) {
	info := src.Info()
	pipeline, err := analysis.NewPipeline(pipelineOptions(cfg, float64(info.SampleRate)))
	if err != nil {
		return nil, err
	}
	defer pipeline.Close()

	notifier := analysis.NewBeatNotifier(pipeline, nil)
	beats := map[string]int{}
	series := make(map[string][]float64, len(summaryOrder))

	err = pipeline.Walk(src, func(index int, startSec float64) error {
		f := pipeline.Features()
		complexDiff, err := pipeline.ComplexSpectralDifference()
		if err != nil {
			return err
		}
		ov := onsetValues{
			EnergyDifference:          pipeline.EnergyDifference(),
			SpectralDifference:        pipeline.SpectralDifference(),
			SpectralDifferenceHWR:     pipeline.SpectralDifferenceHWR(),
			ComplexSpectralDifference: complexDiff,
			HighFrequencyContent:      pipeline.HighFrequencyContent(),
		}
		for _, name := range notifier.Process() {
			beats[name]++
		}

		values := []float64{
			float64(f.RootMeanSquare), float64(f.PeakEnergy), float64(f.ZeroCrossingRate),
			f.CentroidHz, float64(f.Flatness), float64(f.Crest), float64(f.Rolloff), float64(f.Kurtosis),
			float64(ov.EnergyDifference), float64(ov.SpectralDifference), float64(ov.SpectralDifferenceHWR),
			float64(ov.ComplexSpectralDifference), float64(ov.HighFrequencyContent),
		}
		for i, name := range summaryOrder {
			series[name] = append(series[name], values[i])
		}

		if frameOut != nil {
			return frameOut.Encode(frameRecord{Index: index, Time: startSec, Features: f, Onset: ov})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		Duration:   info.Duration,
		FrameSize:  pipeline.FrameSize(),
		Frames:     len(series[summaryOrder[0]]),
		Beats:      beats,
	}
	if report.Frames == 0 {
		return report, nil
	}
	for _, name := range summaryOrder {
		report.Features = append(report.Features, summarize(name, series[name]))
	}
	return report, nil
}

func summarize(name string, x []float64) Summary {
	mean, std := stat.MeanStdDev(x, nil)
	if len(x) < 2 || math.IsNaN(std) {
		std = 0
	}
	return Summary{
		Name:   name,
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(x),
		Max:    floats.Max(x),
	}
}

func writeReport(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "%s: %d Hz, %d channel(s), %.2fs, %d frames of %d\n",
		r.File, r.SampleRate, r.Channels, r.Duration, r.Frames, r.FrameSize)
	fmt.Fprintf(w, "beats: kick %d, snare %d, hihat %d\n\n", r.Beats["kick"], r.Beats["snare"], r.Beats["hihat"])

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "feature\tmean\tstddev\tmin\tmax\t")
	for _, s := range r.Features {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t\n", s.Name, s.Mean, s.StdDev, s.Min, s.Max)
	}
	return tw.Flush()
}
