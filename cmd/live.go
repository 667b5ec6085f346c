// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"audiotools/internal/analysis"
	"audiotools/internal/audio"
	"audiotools/internal/config"
	applog "audiotools/internal/log"
	"audiotools/internal/transport"
	"audiotools/internal/transport/udp"
	"audiotools/internal/tui"
)

// bandEnergyScale maps band RMS of typical program material onto [0, 1].
const bandEnergyScale = 0.02

// featureMessage carries the scalar features of one frame to transports.
type featureMessage struct {
	Type     string            `json:"type"`
	Features analysis.Features `json:"features"`
}

type liveFlags struct {
	device int
	pick   bool
	record bool
	output string
	noTUI  bool
}

func newLiveCmd(flags *globalFlags) *cobra.Command {
	var lf liveFlags

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Analyse an input device in real time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("device") {
				cfg.Audio.InputDevice = lf.device
			}
			if lf.record {
				cfg.Recording.Enabled = true
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return runLive(cfg, lf)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&lf.device, "device", "d", config.MinDeviceID, "Input device ID (-1 for the system default). See 'devices'.")
	f.BoolVarP(&lf.pick, "pick", "p", false, "Choose the input device interactively")
	f.BoolVarP(&lf.record, "record", "r", false, "Record the input stream to WAV")
	f.StringVarP(&lf.output, "output", "o", "", "Recording file name (default: recording-DD-MM-YYYY-HHMMSS.wav in recording.output_dir)")
	f.BoolVar(&lf.noTUI, "no-tui", false, "Log instead of showing the terminal monitor")
	return cmd
}

func runLive(cfg *config.Config, lf liveFlags) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := audio.Terminate(); err != nil {
			applog.Errorf("%v", err)
		}
	}()

	if lf.pick {
		sel, ok, err := tui.PickDevice()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
		cfg.Audio.InputChannels = sel.Channels
	}

	pipeline, err := analysis.NewPipeline(pipelineOptions(cfg, cfg.Audio.SampleRate))
	if err != nil {
		return err
	}
	defer pipeline.Close()

	engine, err := audio.NewEngine(cfg, pipeline)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			applog.Errorf("closing audio engine: %v", err)
		}
	}()

	sinks, err := wireTransports(cfg, pipeline, engine)
	if err != nil {
		return err
	}
	defer sinks.Close()

	if cfg.Transport.UDPEnabled {
		stop, err := startUDP(cfg, pipeline)
		if err != nil {
			return err
		}
		defer stop()
	}

	// Start of real-time processing: PortAudio begins calling the engine.
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		path := lf.output
		if path == "" {
			path = filepath.Join(cfg.Recording.OutputDir,
				"recording-"+time.Now().UTC().Format("02-01-2006-150405")+"."+cfg.Recording.Format)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := engine.StartRecording(path); err != nil {
			return err
		}
		// Runs before engine.Close, so the stream has to stop here first.
		defer func() {
			if err := engine.StopInputStream(); err != nil {
				applog.Errorf("stopping input stream: %v", err)
			}
			if err := engine.StopRecording(); err != nil {
				applog.Errorf("stopping recording: %v", err)
				return
			}
			fmt.Printf("\nRecording saved to: %s\n", path)
		}()
	}

	if lf.noTUI {
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)
		<-done
		processed, gated := engine.Stats()
		applog.Infof("processed %d buffers, gated %d", processed, gated)
		return nil
	}
	return tui.RunMonitor("audiotools live", pipeline, engine.Stats)
}

// wireTransports attaches band energies, beat events and feature records
// to every enabled transport.
func wireTransports(cfg *config.Config, pipeline *analysis.Pipeline, engine *audio.Engine) (transport.Multi, error) {
	var sinks transport.Multi
	if cfg.Transport.WebSocketEnabled {
		sinks = append(sinks, transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress))
	}
	if cfg.Debug {
		sinks = append(sinks, transport.NewLoggingTransport())
	}
	if len(sinks) == 0 {
		return sinks, nil
	}

	bands, err := analysis.NewBandEnergyProcessor(sinks, pipeline, analysis.DefaultBands, bandEnergyScale)
	if err != nil {
		sinks.Close()
		return nil, err
	}
	notifier := analysis.NewBeatNotifier(pipeline, sinks)

	engine.AddListener(bands.Process)
	engine.AddListener(func() { notifier.Process() })
	engine.AddListener(func() {
		if err := sinks.Send(featureMessage{Type: "features", Features: pipeline.Features()}); err != nil {
			applog.Debugf("sending features: %v", err)
		}
	})
	return sinks, nil
}

func startUDP(cfg *config.Config, pipeline *analysis.Pipeline) (func(), error) {
	sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
	if err != nil {
		return nil, err
	}
	publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, pipeline)
	if err != nil {
		sender.Close()
		return nil, err
	}
	publisher.Start()

	return func() {
		if err := publisher.Close(); err != nil {
			applog.Errorf("stopping UDP publisher: %v", err)
		}
		if err := sender.Close(); err != nil {
			applog.Errorf("closing UDP sender: %v", err)
		}
	}, nil
}
