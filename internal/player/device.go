// SPDX-License-Identifier: MIT
package player

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// DefaultDeviceID selects the system default output device.
const DefaultDeviceID = -1

// Device represents an audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowLatencyMs      float64
	HighLatencyMs     float64
}

// IsOutput reports whether the device can play audio.
func (d Device) IsOutput() bool { return d.MaxOutputChannels > 0 }

// Kind describes the device direction.
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return "Unknown"
	}
}

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Devices returns all PortAudio devices. PortAudio must be initialized.
func Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowLatencyMs:      info.DefaultLowOutputLatency.Seconds() * 1000,
			HighLatencyMs:     info.DefaultHighOutputLatency.Seconds() * 1000,
		}
	}
	return devices, nil
}

// OutputDevice returns the device for id, or the default output device for
// DefaultDeviceID.
func OutputDevice(id int) (*portaudio.DeviceInfo, error) {
	if id == DefaultDeviceID {
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default output device: %w", err)
		}
		return dev, nil
	}
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(infos) {
		return nil, fmt.Errorf("invalid device ID: %d", id)
	}
	if infos[id].MaxOutputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) has no output channels", id, infos[id].Name)
	}
	return infos[id], nil
}

// WriteDevices prints a device table to w.
func WriteDevices(w io.Writer, devices []Device) {
	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for _, d := range devices {
		fmt.Fprintf(w, "[%d] %s (%s)\n", d.ID, d.Name, d.Kind())
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Output latency: Low=%.2fms, High=%.2fms\n\n", d.LowLatencyMs, d.HighLatencyMs)
	}
}
