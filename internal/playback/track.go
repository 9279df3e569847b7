// SPDX-License-Identifier: MIT
/*
Package playback tracks the current position of an external playable resource
for a waveform view and derives the played/unplayed boundary used to colour
the rendered waveform.

A Track is bound to at most one Playable at a time. Rebinding tears down the
previous position subscription before attaching the new one, so repeated
mode switches never accumulate subscriptions. Position callbacks that belong
to a torn-down binding are ignored.
*/
package playback

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Playable is an opaque audio resource that reports its current position.
// Subscribe returns a cancel function that detaches the callback.
type Playable interface {
	Ref() string
	Position() time.Duration
	Subscribe(fn func(time.Duration)) (cancel func())
	Play() error
	Pause() error
	Stop() error
	SetRate(rate float64)
	SetMuted(muted bool)
}

// Opener creates a Playable for a resource reference and its decoded samples.
type Opener func(ref string, samples []float64, sampleRate int) (Playable, error)

// Track follows the position of one Playable.
type Track struct {
	mu         sync.Mutex
	playable   Playable
	cancel     func()
	generation uint64
	position   time.Duration
	sampleRate int
	playing    bool
	onChange   func(time.Duration)
}

// NewTrack creates an unbound track. onChange, if not nil, is invoked with the
// latest position after every accepted update.
func NewTrack(onChange func(time.Duration)) *Track {
	return &Track{onChange: onChange}
}

// Bind attaches the track to p, detaching any previous resource first.
// Binding resets the position to zero.
func (t *Track) Bind(p Playable, sampleRate int) {
	t.mu.Lock()
	old, oldCancel := t.detachLocked()
	t.generation++
	gen := t.generation
	t.playable = p
	t.sampleRate = sampleRate
	t.position = 0
	t.playing = false
	t.mu.Unlock()
	release(old, oldCancel)

	if p == nil {
		return
	}

	cancel := p.Subscribe(func(pos time.Duration) {
		t.update(gen, pos)
	})

	t.mu.Lock()
	if t.generation != gen {
		// Rebound while subscribing.
		t.mu.Unlock()
		cancel()
		return
	}
	t.cancel = cancel
	t.mu.Unlock()
}

// Unbind detaches the current resource, stopping it.
func (t *Track) Unbind() {
	t.mu.Lock()
	old, oldCancel := t.detachLocked()
	t.generation++
	t.playable = nil
	t.position = 0
	t.playing = false
	t.mu.Unlock()
	release(old, oldCancel)
}

// detachLocked clears the binding and returns what release must tear down
// once the lock is dropped; a player's Stop may wait on a goroutine that is
// blocked delivering a position to this track.
func (t *Track) detachLocked() (Playable, func()) {
	p, cancel := t.playable, t.cancel
	t.playable, t.cancel = nil, nil
	return p, cancel
}

func release(p Playable, cancel func()) {
	if cancel != nil {
		cancel()
	}
	if p != nil {
		_ = p.Stop()
	}
}

func (t *Track) update(gen uint64, pos time.Duration) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.position = pos
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(pos)
	}
}

// Ref returns the bound resource reference, or "" when unbound.
func (t *Track) Ref() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playable == nil {
		return ""
	}
	return t.playable.Ref()
}

// Bound reports whether a resource is attached.
func (t *Track) Bound() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playable != nil
}

// Playing reports whether Play was called more recently than Pause/Stop.
func (t *Track) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// Position returns the last reported position.
func (t *Track) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// PlayedIndex returns the sample index of the current position.
func (t *Track) PlayedIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return playedIndex(t.position, t.sampleRate)
}

func playedIndex(pos time.Duration, sampleRate int) int {
	if sampleRate <= 0 || pos <= 0 {
		return 0
	}
	return int(math.Floor(pos.Seconds() * float64(sampleRate)))
}

// Play starts or resumes the bound resource.
func (t *Track) Play() error {
	t.mu.Lock()
	p := t.playable
	t.mu.Unlock()
	if p == nil {
		return fmt.Errorf("playback: no resource bound")
	}
	if err := p.Play(); err != nil {
		return fmt.Errorf("playback: play %s: %w", p.Ref(), err)
	}
	t.mu.Lock()
	t.playing = true
	t.mu.Unlock()
	return nil
}

// Pause halts the bound resource without resetting its position.
func (t *Track) Pause() error {
	t.mu.Lock()
	p := t.playable
	t.playing = false
	t.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Pause()
}

// Stop halts playback and forces the position to zero. It is idempotent and
// safe on an unbound track.
func (t *Track) Stop() error {
	t.mu.Lock()
	p := t.playable
	t.mu.Unlock()

	// The resource is halted first so no late tick can move the position.
	var err error
	if p != nil {
		err = p.Stop()
	}

	t.mu.Lock()
	t.playing = false
	t.position = 0
	onChange := t.onChange
	t.mu.Unlock()
	if onChange != nil {
		onChange(0)
	}
	return err
}

// SetRate forwards a playback speed to the bound resource.
func (t *Track) SetRate(rate float64) {
	t.mu.Lock()
	p := t.playable
	t.mu.Unlock()
	if p != nil {
		p.SetRate(rate)
	}
}

// SetMuted forwards the mute state to the bound resource.
func (t *Track) SetMuted(muted bool) {
	t.mu.Lock()
	p := t.playable
	t.mu.Unlock()
	if p != nil {
		p.SetMuted(muted)
	}
}

// FormatClock renders "m:ss / m:ss" for a position and a total duration.
func FormatClock(pos, total time.Duration) string {
	return formatMinutes(pos) + " / " + formatMinutes(total)
}

func formatMinutes(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
