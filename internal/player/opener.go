// SPDX-License-Identifier: MIT
package player

import (
	"fmt"
	"time"

	"eqviewer/internal/playback"
)

// Backend selects the Playable implementation.
type Backend string

const (
	BackendNone      Backend = "none"
	BackendClock     Backend = "clock"
	BackendPortAudio Backend = "portaudio"
)

// Options configures NewOpener.
type Options struct {
	Backend         Backend
	DeviceID        int
	FramesPerBuffer int
	UpdateInterval  time.Duration
}

// NewOpener returns a playback.Opener for the chosen backend, or nil for
// BackendNone. The PortAudio backend resolves its device once, up front.
func NewOpener(opts Options) (playback.Opener, error) {
	switch opts.Backend {
	case BackendNone, "":
		return nil, nil

	case BackendClock:
		return func(ref string, samples []float64, sampleRate int) (playback.Playable, error) {
			return NewClockPlayer(ref, samples, sampleRate, opts.UpdateInterval)
		}, nil

	case BackendPortAudio:
		device, err := OutputDevice(opts.DeviceID)
		if err != nil {
			return nil, err
		}
		return func(ref string, samples []float64, sampleRate int) (playback.Playable, error) {
			return NewPortAudioPlayer(ref, samples, sampleRate, device, opts.FramesPerBuffer, opts.UpdateInterval)
		}, nil

	default:
		return nil, fmt.Errorf("unknown playback backend: '%s'", opts.Backend)
	}
}
