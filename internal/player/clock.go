// SPDX-License-Identifier: MIT
package player

import (
	"errors"
	"time"

	"eqviewer/internal/playback"
)

// ClockPlayer plays silently, advancing its position with the wall clock.
type ClockPlayer struct {
	base
	last time.Time
}

var _ playback.Playable = (*ClockPlayer)(nil)

// NewClockPlayer creates a paused player at position zero.
func NewClockPlayer(ref string, samples []float64, sampleRate int, interval time.Duration) (*ClockPlayer, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	return &ClockPlayer{base: newBase(ref, samples, sampleRate, interval)}, nil
}

// Play starts or resumes playback. Playing from the end restarts at zero.
func (p *ClockPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return nil
	}
	if int(p.frame) >= len(p.samples) {
		p.frame = 0
	}
	p.playing = true
	p.last = time.Now()
	p.startTickerLocked(p.step, nil)
	return nil
}

func (p *ClockPlayer) step(now time.Time) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := now.Sub(p.last)
	p.last = now
	p.frame += elapsed.Seconds() * p.rate * float64(p.sampleRate)
	done := false
	if end := float64(len(p.samples)); p.frame >= end {
		p.frame = end
		p.playing = false
		done = true
	}
	return p.frameTime(p.frame), done
}

// Pause freezes the position.
func (p *ClockPlayer) Pause() error {
	p.stopTicker()
	p.mu.Lock()
	p.playing = false
	pos := p.frameTime(p.frame)
	p.mu.Unlock()
	p.emit(pos)
	return nil
}

// Stop pauses and rewinds to zero.
func (p *ClockPlayer) Stop() error {
	p.stopTicker()
	p.mu.Lock()
	p.playing = false
	p.frame = 0
	p.mu.Unlock()
	p.emit(0)
	return nil
}

// Seek moves the cursor to pos.
func (p *ClockPlayer) Seek(pos time.Duration) {
	p.mu.Lock()
	p.frame = max(0, min(float64(len(p.samples)), pos.Seconds()*float64(p.sampleRate)))
	p.last = time.Now()
	cur := p.frameTime(p.frame)
	p.mu.Unlock()
	p.emit(cur)
}
