// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func mockDevices() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{
			Name:                    "Built-in Microphone",
			MaxInputChannels:        2,
			DefaultSampleRate:       44100,
			DefaultLowInputLatency:  5 * time.Millisecond,
			DefaultHighInputLatency: 20 * time.Millisecond,
		},
		{
			Name:              "Built-in Output",
			MaxOutputChannels: 2,
			DefaultSampleRate: 48000,
		},
		{
			Name:              "Interface",
			MaxInputChannels:  8,
			MaxOutputChannels: 8,
			DefaultSampleRate: 96000,
		},
	}
}

// withMockPortAudio swaps every PortAudio entry point for the test's lifetime.
func withMockPortAudio(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()
	origInit, origTerm := paLibInitialize, paLibTerminate
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibInitialize, paLibTerminate = origInit, origTerm
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})

	paLibInitialize = func() error { return nil }
	paLibTerminate = func() error { return nil }
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, err }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if err != nil {
			return nil, err
		}
		return devices[0], nil
	}
}

func TestInitializeTerminate(t *testing.T) {
	withMockPortAudio(t, mockDevices(), nil)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := Terminate(); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("no host api") }
	err := Initialize()
	if err == nil || !strings.Contains(err.Error(), "no host api") {
		t.Errorf("Initialize() error = %v, want wrapped host error", err)
	}
}

func TestHostDevices(t *testing.T) {
	withMockPortAudio(t, mockDevices(), nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("len(devices) = %d, want 3", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name == "" {
			t.Errorf("Device %d has empty name", i)
		}
		if d.DefaultSampleRate <= 0 {
			t.Errorf("Device %d has invalid sample rate: %f", i, d.DefaultSampleRate)
		}
	}

	inputs, err := InputDevices()
	if err != nil {
		t.Fatalf("InputDevices error: %v", err)
	}
	if len(inputs) != 2 || inputs[0].ID != 0 || inputs[1].ID != 2 {
		t.Errorf("InputDevices = %+v, want IDs 0 and 2", inputs)
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	withMockPortAudio(t, nil, fmt.Errorf("mock error"))

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestHostDevices_NilList(t *testing.T) {
	withMockPortAudio(t, nil, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("HostDevices = %v, want empty non-nil slice", devices)
	}
}

func TestInputDevice(t *testing.T) {
	withMockPortAudio(t, mockDevices(), nil)

	t.Run("Default device", func(t *testing.T) {
		dev, err := InputDevice(-1)
		if err != nil {
			t.Fatalf("InputDevice(-1) error: %v", err)
		}
		if dev.Name != "Built-in Microphone" {
			t.Errorf("default device = %q", dev.Name)
		}
	})

	t.Run("Valid input device", func(t *testing.T) {
		dev, err := InputDevice(2)
		if err != nil {
			t.Fatalf("InputDevice(2) error: %v", err)
		}
		if dev.Name != "Interface" {
			t.Errorf("device = %q, want Interface", dev.Name)
		}
	})

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", 13, "invalid device ID"},
		{"Non-input device", 1, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Fatalf("Expected error for ID %d", tt.id)
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestListDevices(t *testing.T) {
	withMockPortAudio(t, mockDevices(), nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"[1] Built-in Output (Output)",
		"[2] Interface (Input/Output)",
		"Default sample rate: 96000 Hz",
		"Latency: Low=5.00ms, High=20.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestListDevices_Error(t *testing.T) {
	withMockPortAudio(t, nil, fmt.Errorf("device enumeration failed"))

	var buf bytes.Buffer
	if err := ListDevices(&buf); err == nil {
		t.Error("expected error")
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %q on error", buf.String())
	}
}
