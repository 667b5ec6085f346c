// SPDX-License-Identifier: MIT
package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"

	"audiotools/internal/envelope"
	applog "audiotools/internal/log"
	"audiotools/internal/pcm"
	"audiotools/internal/window"
	"audiotools/pkg/utils"
)

const (
	testFrameSize  = 1024
	testSampleRate = 44100
)

func newTestPipeline(t *testing.T, mutate func(*Options)) *Pipeline {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	p, err := NewPipeline(opts)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestNewPipelineValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr error
	}{
		{"Zero Frame Size", func(o *Options) { o.FrameSize = 0 }, ErrInvalidFrameSize},
		{"Negative Sample Rate", func(o *Options) { o.SampleRate = -1 }, ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			if _, err := NewPipeline(opts); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewPipeline() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateFrameSize(t *testing.T) {
	p := newTestPipeline(t, nil)

	if p.Processed() {
		t.Fatal("fresh pipeline reports a processed frame")
	}

	// Before any frame, and repeated: both must be safe.
	for range 2 {
		if err := p.UpdateFrameSize(960); err != nil {
			t.Fatalf("UpdateFrameSize(960) error = %v", err)
		}
	}
	if got := p.FrameSize(); got != 960 {
		t.Errorf("FrameSize() = %d, want 960", got)
	}
	if got := len(p.MagnitudeSpectrum()); got != 480 {
		t.Errorf("magnitude bins = %d, want 480", got)
	}

	if err := p.UpdateFrameSize(-4); !errors.Is(err, ErrInvalidFrameSize) {
		t.Errorf("UpdateFrameSize(-4) error = %v, want ErrInvalidFrameSize", err)
	}
	if got := p.FrameSize(); got != 960 {
		t.Errorf("FrameSize() after invalid resize = %d, want 960", got)
	}
}

func TestProcessAudioFrameResizes(t *testing.T) {
	p := newTestPipeline(t, nil)

	frame := utils.GenerateSineWave(300, testSampleRate, 1000)
	if err := p.ProcessAudioFrame(frame, true); err != nil {
		t.Fatalf("ProcessAudioFrame() error = %v", err)
	}

	if got := p.FrameSize(); got != 300 {
		t.Errorf("FrameSize() = %d, want 300", got)
	}
	re, im := p.Spectrum()
	if len(re) != 300 || len(im) != 300 {
		t.Errorf("spectrum lengths = %d/%d, want 300", len(re), len(im))
	}
	if got := len(p.GetMagnitudes()); got != 150 {
		t.Errorf("magnitude bins = %d, want 150", got)
	}
	if !p.Processed() {
		t.Error("Processed() = false after a frame")
	}

	if err := p.ProcessAudioFrame(nil, true); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("empty frame error = %v, want ErrEmptyFrame", err)
	}
}

func TestImpulseHasFlatSpectrum(t *testing.T) {
	p := newTestPipeline(t, func(o *Options) {
		o.FrameSize = 64
		o.Window = window.Rectangular
	})

	frame := make([]float32, 64)
	frame[0] = 1
	if err := p.ProcessAudioFrame(frame, false); err != nil {
		t.Fatal(err)
	}

	for k, m := range p.MagnitudeSpectrum() {
		if math.Abs(float64(m)-1) > 1e-5 {
			t.Fatalf("bin %d = %v, want 1", k, m)
		}
	}
	if got := p.SpectralFlatness(); got < 0.99 {
		t.Errorf("SpectralFlatness() = %v, want ~1", got)
	}
	if got := p.SpectralCrest(); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("SpectralCrest() = %v, want 1", got)
	}
}

func TestSineEndToEnd(t *testing.T) {
	p := newTestPipeline(t, nil)

	src, err := pcm.NewBuffer(utils.GenerateSineWave(testSampleRate, testSampleRate, 440), 1, testSampleRate)
	if err != nil {
		t.Fatal(err)
	}

	frames := 0
	err = p.Walk(src, func(index int, startSec float64) error {
		frames++
		if want := float64(index*testFrameSize) / testSampleRate; startSec != want {
			return fmt.Errorf("frame %d starts at %v, want %v", index, startSec, want)
		}

		mags := p.MagnitudeSpectrum()
		if peak := utils.FindPeakBin(mags, 0, len(mags)-1); peak != 10 {
			return fmt.Errorf("frame %d: peak bin = %d, want 10", index, peak)
		}
		if c := p.SpectralCentroid(); c < 9.5 || c > 11.5 {
			return fmt.Errorf("frame %d: centroid = %v bins, want ~10.2", index, c)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := testSampleRate / testFrameSize; frames != want {
		t.Errorf("Walk processed %d frames, want %d", frames, want)
	}

	f := p.Features()
	if math.Abs(f.CentroidHz-440) > 45 {
		t.Errorf("Features().CentroidHz = %v, want ~440", f.CentroidHz)
	}
	if math.Abs(float64(f.RootMeanSquare)-0.9/math.Sqrt2) > 0.01 {
		t.Errorf("Features().RootMeanSquare = %v, want ~0.636", f.RootMeanSquare)
	}
	if got := p.GetFrequencyForBin(10); math.Abs(got-430.664) > 0.01 {
		t.Errorf("GetFrequencyForBin(10) = %v, want 430.664", got)
	}
	if got := p.GetFrequencyForBin(testFrameSize / 2); got != 0 {
		t.Errorf("GetFrequencyForBin(N/2) = %v, want 0", got)
	}
}

func TestSilenceNeverKicks(t *testing.T) {
	p := newTestPipeline(t, nil)
	silence := make([]float32, testFrameSize)

	for i := range 100 {
		if err := p.ProcessAudioFrame(silence, true); err != nil {
			t.Fatal(err)
		}
		if p.IsKick() {
			t.Fatalf("IsKick() = true on silent frame %d", i)
		}
	}

	f := p.Features()
	if f.RootMeanSquare != 0 || f.PeakEnergy != 0 || f.ZeroCrossingRate != 0 {
		t.Errorf("silent time features = %+v", f)
	}
	if f.Crest != 1 {
		t.Errorf("silent crest = %v, want 1", f.Crest)
	}
}

func TestBurstAfterSilenceKicks(t *testing.T) {
	p := newTestPipeline(t, nil)
	mock := &utils.MockTransport{}
	notifier := NewBeatNotifier(p, mock)

	silence := make([]float32, testFrameSize)
	burst := utils.GenerateBursts(testFrameSize, testFrameSize, testFrameSize)

	for range 10 {
		p.ProcessAudioFrame(silence, true)
		if fired := notifier.Process(); len(fired) != 0 {
			t.Fatalf("silence fired %v", fired)
		}
	}

	p.ProcessAudioFrame(burst, true)
	if !p.IsKick() {
		t.Fatal("IsKick() = false for a burst after silence")
	}
	if p.Band(1) <= 0 {
		t.Errorf("Band(1) = %v, want positive energy", p.Band(1))
	}
	fired := notifier.Process()
	if len(fired) == 0 || fired[0] != "kick" {
		t.Fatalf("notifier fired %v, want kick first", fired)
	}

	p.ProcessAudioFrame(burst, true)
	for _, name := range notifier.Process() {
		if name == "kick" {
			t.Error("kick reported twice without a falling edge")
		}
	}

	sent := mock.Sent()
	if len(sent) != len(fired) {
		t.Fatalf("transport received %d events, want %d", len(sent), len(fired))
	}
	if ev, ok := sent[0].(BeatEvent); !ok || ev.Name != "kick" || ev.Frame != 11 {
		t.Errorf("first event = %+v", sent[0])
	}
}

func TestDrumsWithTwoSubbands(t *testing.T) {
	p := newTestPipeline(t, func(o *Options) { o.Subbands = 2 })
	notifier := NewBeatNotifier(p, nil)

	var buf bytes.Buffer
	applog.SetOutput(&buf)
	t.Cleanup(func() { applog.SetOutput(os.Stderr) })

	silence := make([]float32, testFrameSize)
	burst := utils.GenerateBursts(testFrameSize, testFrameSize, testFrameSize)
	for range 5 {
		p.ProcessAudioFrame(silence, true)
		notifier.Process()
	}
	p.ProcessAudioFrame(burst, true)

	f := p.Features()
	kick, snare, hihat := p.Drums()
	if f.Kick != kick || f.Snare != snare || f.HiHat != hihat {
		t.Errorf("Features() drums (%v, %v, %v) != Drums() (%v, %v, %v)", f.Kick, f.Snare, f.HiHat, kick, snare, hihat)
	}
	if !kick || snare || hihat {
		t.Errorf("Drums() = (%v, %v, %v), want only a kick", kick, snare, hihat)
	}
	if fired := notifier.Process(); len(fired) != 1 || fired[0] != "kick" {
		t.Errorf("notifier fired %v, want [kick]", fired)
	}
	if buf.Len() != 0 {
		t.Errorf("drum queries logged:\n%s", buf.String())
	}
}

func TestBeatResizeThroughPipeline(t *testing.T) {
	p := newTestPipeline(t, nil)

	p.UpdateFFTSubbandSize(16)
	p.UpdateEnergyHistorySize(8)
	p.UpdateFFTSubbandSize(0)
	p.UpdateEnergyHistorySize(-1)

	if got := p.Subbands(); got != 16 {
		t.Errorf("Subbands() = %d, want 16", got)
	}
	if err := p.ProcessAudioFrame(utils.GenerateComplexWave(testFrameSize, testSampleRate), true); err != nil {
		t.Fatal(err)
	}
	if got := len(p.BandEnergies(nil)); got != 16 {
		t.Errorf("BandEnergies() length = %d, want 16", got)
	}
	if p.IsBeat(16) || p.Band(0) != -1 || p.Band(16) != -1 {
		t.Error("out-of-range beat queries must return their sentinels")
	}
}

func TestOnsetAccessors(t *testing.T) {
	p := newTestPipeline(t, nil)
	frame := utils.GenerateComplexWave(testFrameSize, testSampleRate)

	if err := p.ProcessAudioFrame(frame, false); err != nil {
		t.Fatal(err)
	}
	first := p.SpectralDifference()
	if first <= 0 {
		t.Fatalf("first SpectralDifference() = %v, want > 0", first)
	}
	if p.EnergyDifference() <= 0 {
		t.Error("first EnergyDifference() must see the jump from silence")
	}
	if p.HighFrequencyContent() <= 0 {
		t.Error("HighFrequencyContent() = 0 for a tonal frame")
	}

	if err := p.ProcessAudioFrame(frame, false); err != nil {
		t.Fatal(err)
	}
	if got := p.SpectralDifference(); got != 0 {
		t.Errorf("SpectralDifference() on a repeated frame = %v, want 0", got)
	}
	if got := p.SpectralDifferenceHWR(); got <= 0 {
		t.Errorf("first SpectralDifferenceHWR() = %v, want > 0", got)
	}
	if got := p.EnergyDifference(); got != 0 {
		t.Errorf("EnergyDifference() on a repeated frame = %v, want 0", got)
	}
	if _, err := p.ComplexSpectralDifference(); err != nil {
		t.Errorf("ComplexSpectralDifference() error = %v", err)
	}

	// A new frame size resets the memories instead of indexing past them.
	if err := p.ProcessAudioFrame(frame[:512], false); err != nil {
		t.Fatal(err)
	}
	if got := p.SpectralDifference(); got <= 0 {
		t.Errorf("SpectralDifference() after resize = %v, want > 0 from reset memory", got)
	}
}

func TestSubmitOrdering(t *testing.T) {
	p := newTestPipeline(t, nil)

	var results []<-chan error
	for _, n := range []int{256, 512, 128, 768} {
		results = append(results, p.Submit(utils.GenerateSineWave(n, testSampleRate, 440), true))
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	for i, done := range results {
		if err := <-done; err != nil {
			t.Errorf("frame %d error = %v", i, err)
		}
	}
	if got := p.FrameSize(); got != 768 {
		t.Errorf("FrameSize() = %d, want 768 from the last submission", got)
	}

	if err := <-p.Submit(nil, false); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("empty submission error = %v, want ErrEmptyFrame", err)
	}

	p.Close()
	if err := <-p.Submit(make([]float32, 8), false); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close error = %v, want ErrClosed", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestProcessTimeRange(t *testing.T) {
	p := newTestPipeline(t, nil)

	mono := utils.GenerateSineWave(8000, 8000, 1000)
	stereo := utils.Interleave(mono, 2)
	src, err := pcm.NewBuffer(stereo, 2, 8000)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.ProcessTimeRange(src, 0.25, 0.5); err != nil {
		t.Fatalf("ProcessTimeRange() error = %v", err)
	}
	if got := p.FrameSize(); got != 2000 {
		t.Errorf("FrameSize() = %d, want 2000", got)
	}
	if got := p.GetSampleRate(); got != 8000 {
		t.Errorf("GetSampleRate() = %v, want 8000", got)
	}
	frame := p.AudioFrame()
	for i := range 10 {
		if frame[i] != mono[2000+i] {
			t.Fatalf("downmixed sample %d = %v, want %v", i, frame[i], mono[2000+i])
		}
	}

	tests := []struct {
		name       string
		start, end float64
	}{
		{"Reversed", 0.5, 0.25},
		{"Past Duration", 0.5, 1.5},
		{"Negative Start", -0.1, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.ProcessTimeRange(src, tt.start, tt.end); !errors.Is(err, pcm.ErrInvalidRange) {
				t.Errorf("error = %v, want ErrInvalidRange", err)
			}
		})
	}

	if err := p.ProcessAudioFrames(src, 100, 100); !errors.Is(err, pcm.ErrInvalidRange) {
		t.Errorf("empty frame range error = %v, want ErrInvalidRange", err)
	}
	if got := p.FrameSize(); got != 2000 {
		t.Errorf("failed range changed frame size to %d", got)
	}
}

func TestGetMagnitudesInto(t *testing.T) {
	p := newTestPipeline(t, nil)
	p.ProcessAudioFrame(utils.GenerateComplexWave(testFrameSize, testSampleRate), false)

	if err := p.GetMagnitudesInto(make([]float32, 10)); !errors.Is(err, ErrMagnitudeLength) {
		t.Errorf("short destination error = %v, want ErrMagnitudeLength", err)
	}

	dest := make([]float32, testFrameSize/2)
	allocs := testing.AllocsPerRun(100, func() {
		p.GetMagnitudesInto(dest)
	})
	if allocs != 0 {
		t.Errorf("GetMagnitudesInto allocated %.0f times", allocs)
	}

	mags := p.GetMagnitudes()
	for i := range dest {
		if dest[i] != mags[i] {
			t.Fatalf("bin %d: %v != %v", i, dest[i], mags[i])
		}
	}
}

func TestEnvelopeValuesAndSampleRate(t *testing.T) {
	p := newTestPipeline(t, func(o *Options) { o.FrameSize = 256 })

	if err := p.UpdateSampleRate(0); !errors.Is(err, ErrInvalidSampleRate) {
		t.Errorf("UpdateSampleRate(0) error = %v", err)
	}
	if err := p.UpdateSampleRate(48000); err != nil {
		t.Fatal(err)
	}
	if got := p.Envelope().Options().SampleRate; got != 48000 {
		t.Errorf("envelope sample rate = %d, want 48000", got)
	}

	p.ProcessAudioFrame(utils.GenerateSineWave(256, 48000, 200), false)
	data, status := p.EnvelopeValues()
	if status != envelope.Success {
		t.Fatalf("EnvelopeValues() status = %v", status)
	}
	if len(data.Points) != 1 || data.Points[0].TimeSec != 0 {
		t.Errorf("EnvelopeValues() points = %+v, want one point at t=0", data.Points)
	}
}

func BenchmarkProcessAudioFrame(b *testing.B) {
	for _, n := range []int{512, 1024, 4096} {
		b.Run(fmt.Sprintf("N=%d", n), func(b *testing.B) {
			p, err := NewPipeline(Options{FrameSize: n, SampleRate: testSampleRate, Window: window.Hanning})
			if err != nil {
				b.Fatal(err)
			}
			defer p.Close()
			frame := utils.GenerateComplexWave(n, testSampleRate)

			b.ReportAllocs()
			for b.Loop() {
				p.ProcessAudioFrame(frame, true)
			}
		})
	}
}
