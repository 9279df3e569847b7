// SPDX-License-Identifier: MIT
/*
Package player implements playback.Playable for decoded signals.

ClockPlayer advances its position against the wall clock and produces no
sound, for headless servers and tests. PortAudioPlayer streams the signal to
an output device. Both report their position to subscribers at a fixed
update interval while playing.
*/
package player

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// DefaultUpdateInterval is how often position updates are emitted.
const DefaultUpdateInterval = 50 * time.Millisecond

// Playback rate bounds.
const (
	MinRate = 0.25
	MaxRate = 4.0
)

// base holds the signal, cursor and subscribers shared by every player.
type base struct {
	ref        string
	samples    []float64
	sampleRate int
	interval   time.Duration

	mu       sync.Mutex
	frame    float64
	playing  bool
	rate     float64
	muted    bool
	subs     map[uint64]func(time.Duration)
	nextSub  uint64
	stopTick chan struct{}
	wg       sync.WaitGroup
}

func newBase(ref string, samples []float64, sampleRate int, interval time.Duration) base {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	return base{
		ref:        ref,
		samples:    samples,
		sampleRate: sampleRate,
		interval:   interval,
		rate:       1,
		subs:       make(map[uint64]func(time.Duration)),
	}
}

// Ref returns the resource reference being played.
func (b *base) Ref() string { return b.ref }

// Duration returns the signal length.
func (b *base) Duration() time.Duration {
	return b.frameTime(float64(len(b.samples)))
}

func (b *base) frameTime(frame float64) time.Duration {
	if b.sampleRate <= 0 {
		return 0
	}
	return time.Duration(frame / float64(b.sampleRate) * float64(time.Second))
}

// Position returns the current playback position.
func (b *base) Position() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frameTime(b.frame)
}

// Subscribe registers fn for position updates.
func (b *base) Subscribe(fn func(time.Duration)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// SetRate changes the playback speed, clamped to [MinRate, MaxRate].
func (b *base) SetRate(rate float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rate = max(MinRate, min(MaxRate, rate))
}

// SetMuted silences output without stopping the cursor.
func (b *base) SetMuted(muted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.muted = muted
}

func (b *base) emit(pos time.Duration) {
	b.mu.Lock()
	fns := slices.Collect(maps.Values(b.subs))
	b.mu.Unlock()
	for _, fn := range fns {
		fn(pos)
	}
}

// startTickerLocked runs step every interval until stopTicker is called or
// step reports the end of the signal. Must be called with mu held.
func (b *base) startTickerLocked(step func(now time.Time) (time.Duration, bool), onEnd func()) {
	stop := make(chan struct{})
	b.stopTick = stop
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				pos, done := step(now)
				b.emit(pos)
				if done {
					if onEnd != nil {
						onEnd()
					}
					return
				}
			}
		}
	}()
}

// stopTicker stops the update goroutine and waits for it to exit.
func (b *base) stopTicker() {
	b.mu.Lock()
	stop := b.stopTick
	b.stopTick = nil
	b.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	b.wg.Wait()
}
