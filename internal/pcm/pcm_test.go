// SPDX-License-Identifier: MIT
package pcm

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestNewBufferValidation(t *testing.T) {
	if _, err := NewBuffer(nil, 0, 44100); !errors.Is(err, ErrInvalidChannels) {
		t.Errorf("channels 0: got %v, want ErrInvalidChannels", err)
	}
	if _, err := NewBuffer(nil, 2, 0); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("rate 0: got %v, want ErrInvalidRate", err)
	}

	b, err := NewBuffer(make([]float32, 9), 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	info := b.Info()
	if info.TotalFrames != 4 || len(b.Samples()) != 8 || info.Duration != 1 {
		t.Errorf("info = %+v, samples = %d", info, len(b.Samples()))
	}
}

func TestGetFrameHalfOpen(t *testing.T) {
	b, err := NewBuffer([]float32{0, 1, 2, 3, 4, 5, 6, 7}, 2, 8000)
	if err != nil {
		t.Fatal(err)
	}

	got, err := b.GetFrame(1, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	got[0] = 99
	if b.Samples()[2] != 2 {
		t.Error("GetFrame must return a copy")
	}

	tests := []struct {
		name       string
		start, end int
	}{
		{"negative start", -1, 2},
		{"empty", 2, 2},
		{"reversed", 3, 1},
		{"past end", 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.GetFrame(tt.start, tt.end); !errors.Is(err, ErrInvalidRange) {
				t.Errorf("got %v, want ErrInvalidRange", err)
			}
		})
	}
}

func TestFrameRange(t *testing.T) {
	info := Info{Channels: 1, SampleRate: 1000, TotalFrames: 2000, Duration: 2}

	start, end, err := FrameRange(info, 0.5, 1.25)
	if err != nil {
		t.Fatal(err)
	}
	if start != 500 || end != 1250 {
		t.Errorf("got [%d, %d), want [500, 1250)", start, end)
	}

	for _, r := range [][2]float64{{-1, 1}, {1, 1}, {1, 3}} {
		if _, _, err := FrameRange(info, r[0], r[1]); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("%v: got %v, want ErrInvalidRange", r, err)
		}
	}
}

func TestDownmix(t *testing.T) {
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	got := Downmix(nil, stereo, 2)
	want := []float32{0.5, 0.5, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	mono := Downmix(make([]float32, 0, 8), []float32{0.25, -0.25}, 1)
	if len(mono) != 2 || mono[0] != 0.25 || mono[1] != -0.25 {
		t.Errorf("mono downmix = %v", mono)
	}

	dst := make([]float32, 0, 3)
	allocs := testing.AllocsPerRun(100, func() {
		dst = Downmix(dst, stereo, 2)
	})
	if allocs != 0 {
		t.Errorf("Downmix allocated %.0f times with sufficient capacity", allocs)
	}
}

func writeTempWAV(t *testing.T, samples []float32, channels, rate, bitDepth int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := WriteWAV(f, samples, channels, rate, bitDepth); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWAVRoundTrip(t *testing.T) {
	const rate = 8000
	samples := make([]float32, 2*rate/10)
	for i := 0; i < len(samples); i += 2 {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i/2)/rate))
		samples[i] = v
		samples[i+1] = -v
	}

	for _, bitDepth := range []int{8, 16, 24, 32} {
		t.Run(fmt.Sprintf("%d bit", bitDepth), func(t *testing.T) {
			b, err := LoadWAV(writeTempWAV(t, samples, 2, rate, bitDepth))
			if err != nil {
				t.Fatal(err)
			}
			info := b.Info()
			if info.Channels != 2 || info.SampleRate != rate || info.TotalFrames != len(samples)/2 {
				t.Fatalf("info = %+v", info)
			}

			tol := math.Ldexp(1, 1-bitDepth)
			for i, s := range b.Samples() {
				if d := math.Abs(float64(s - samples[i])); d > tol {
					t.Fatalf("sample %d = %v, want %v", i, s, samples[i])
				}
			}
		})
	}
}

func TestWAV8BitKeepsSign(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.25, -0.25, 0, -1}
	b, err := LoadWAV(writeTempWAV(t, samples, 1, 8000, 8))
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range b.Samples() {
		if s != samples[i] {
			t.Errorf("sample %d = %v, want %v", i, s, samples[i])
		}
	}
}

func TestWriteWAVRejectsBitDepth(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "bad.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, bitDepth := range []int{0, 12, 64} {
		if err := WriteWAV(f, []float32{0}, 1, 8000, bitDepth); !errors.Is(err, ErrInvalidBitDepth) {
			t.Errorf("WriteWAV(bitDepth %d) error = %v, want ErrInvalidBitDepth", bitDepth, err)
		}
	}
}

func TestLoadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("not a wave file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWAV(path); err == nil {
		t.Error("expected an error for a non-WAV file")
	}
	if _, err := LoadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestIntToFloat(t *testing.T) {
	got := intToFloat([]int{-32768, 0, 16384}, 16)
	want := []float32{-1, 0, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("16 bit [%d] = %v, want %v", i, got[i], want[i])
		}
	}
	got = intToFloat([]int{0, 128, 192}, 8)
	want = []float32{-1, 0, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("8 bit [%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
