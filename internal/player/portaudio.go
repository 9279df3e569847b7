// SPDX-License-Identifier: MIT
package player

import (
	"errors"
	"fmt"
	"sync"
	"time"

	applog "eqviewer/internal/log"
	"eqviewer/internal/playback"

	"github.com/gordonklaus/portaudio"
)

// PortAudioPlayer streams a mono signal to an output device. The stream is
// opened on Play and closed on Pause, Stop or end of signal, so an idle
// player holds no device resources.
type PortAudioPlayer struct {
	base
	device          *portaudio.DeviceInfo
	framesPerBuffer int

	streamMu sync.Mutex
	stream   *portaudio.Stream
}

var _ playback.Playable = (*PortAudioPlayer)(nil)

// NewPortAudioPlayer creates a paused player on device. PortAudio must be
// initialized.
func NewPortAudioPlayer(ref string, samples []float64, sampleRate int, device *portaudio.DeviceInfo,
	framesPerBuffer int, interval time.Duration) (*PortAudioPlayer, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if device == nil {
		return nil, errors.New("no output device")
	}
	return &PortAudioPlayer{
		base:            newBase(ref, samples, sampleRate, interval),
		device:          device,
		framesPerBuffer: framesPerBuffer,
	}, nil
}

// Play opens an output stream and starts playback.
func (p *PortAudioPlayer) Play() error {
	p.streamMu.Lock()
	defer p.streamMu.Unlock()
	if p.stream != nil {
		return nil
	}

	p.mu.Lock()
	if int(p.frame) >= len(p.samples) {
		p.frame = 0
	}
	p.mu.Unlock()

	params := portaudio.HighLatencyParameters(nil, p.device)
	params.Output.Channels = 1
	params.SampleRate = float64(p.sampleRate)
	params.FramesPerBuffer = p.framesPerBuffer

	stream, err := portaudio.OpenStream(params, p.fill)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}

	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()

	if err := stream.Start(); err != nil {
		stream.Close()
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	p.stream = stream

	p.mu.Lock()
	p.startTickerLocked(p.step, func() {
		// End of signal: release the device from the ticker goroutine.
		go p.closeStream()
	})
	p.mu.Unlock()
	return nil
}

// fill is the PortAudio output callback.
func (p *PortAudioPlayer) fill(out []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range out {
		idx := int(p.frame)
		if !p.playing || idx >= len(p.samples) {
			out[i] = 0
			continue
		}
		if p.muted {
			out[i] = 0
		} else {
			out[i] = float32(p.samples[idx])
		}
		p.frame += p.rate
	}
}

func (p *PortAudioPlayer) step(time.Time) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	done := false
	if end := float64(len(p.samples)); p.frame >= end {
		p.frame = end
		p.playing = false
		done = true
	}
	return p.frameTime(p.frame), done
}

func (p *PortAudioPlayer) closeStream() {
	p.streamMu.Lock()
	defer p.streamMu.Unlock()
	if p.stream == nil {
		return
	}
	if err := p.stream.Stop(); err != nil {
		applog.Warnf("PortAudioPlayer: stop stream for %q: %v", p.ref, err)
	}
	if err := p.stream.Close(); err != nil {
		applog.Warnf("PortAudioPlayer: close stream for %q: %v", p.ref, err)
	}
	p.stream = nil
}

// Pause stops the stream and keeps the position.
func (p *PortAudioPlayer) Pause() error {
	p.stopTicker()
	p.mu.Lock()
	p.playing = false
	pos := p.frameTime(p.frame)
	p.mu.Unlock()
	p.closeStream()
	p.emit(pos)
	return nil
}

// Stop stops the stream and rewinds to zero.
func (p *PortAudioPlayer) Stop() error {
	p.stopTicker()
	p.mu.Lock()
	p.playing = false
	p.frame = 0
	p.mu.Unlock()
	p.closeStream()
	p.emit(0)
	return nil
}
