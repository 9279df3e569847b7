// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	applog "eqviewer/internal/log"
	"eqviewer/internal/session"
	"eqviewer/internal/workbench"

	"golang.org/x/time/rate"
)

// Publisher sends a full frame on every session event and a playback frame
// on position changes, at most once per interval. It runs in a separate
// goroutine managed by Start and Stop.
type Publisher struct {
	src      Source
	sinks    []Transport
	interval time.Duration
	limiter  *rate.Limiter

	unsubscribe func()
	cancel      context.CancelFunc
	stopOnce    sync.Once
	wg          sync.WaitGroup
	mu          sync.Mutex

	sent uint64
}

// NewPublisher creates a publisher for src. If interval is invalid (<= 0),
// it defaults to 100ms.
func NewPublisher(interval time.Duration, src Source, sinks ...Transport) (*Publisher, error) {
	if src == nil {
		return nil, fmt.Errorf("Publisher: source cannot be nil")
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("Publisher: at least one transport is required")
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
		applog.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("Publisher: Initializing (Interval: %s, Transports: %d)", interval, len(sinks))

	return &Publisher{
		src:      src,
		sinks:    sinks,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// Start subscribes to session events and launches the playback goroutine.
// Subsequent calls are no-ops while running.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		applog.Warnf("Publisher: Start called but already running.")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.stopOnce = sync.Once{}
	p.unsubscribe = p.src.Subscribe(func(ev session.Event) {
		applog.Debugf("Publisher: %s (mode %q, gen %d)", ev.Kind, ev.Mode, ev.Generation)
		p.publish(p.src.Frame())
	})
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		positions := p.src.Positions()
		for {
			select {
			case <-ctx.Done():
				return
			case <-positions:
				if err := p.limiter.Wait(ctx); err != nil {
					return
				}
				p.publish(p.src.PlaybackFrame())
			}
		}
	}()
}

// Stop detaches from the source and waits for the playback goroutine.
// It is safe to call Stop multiple times.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.cancel == nil {
		p.mu.Unlock()
		applog.Debugf("Publisher: Stop called but not running.")
		return nil
	}
	p.stopOnce.Do(func() {
		p.unsubscribe()
		p.cancel()
		p.cancel = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("Publisher: stopped after %d frames", p.Sent())
	return nil
}

// Sent returns how many frames were published.
func (p *Publisher) Sent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

func (p *Publisher) publish(f workbench.Frame) {
	for _, t := range p.sinks {
		if err := t.Send(f); err != nil {
			applog.Errorf("Publisher: Error sending %s frame: %v", f.Type, err)
		}
	}
	p.mu.Lock()
	p.sent++
	p.mu.Unlock()
}

// Close implements the io.Closer interface.
func (p *Publisher) Close() error {
	return p.Stop()
}

// Ensure Publisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*Publisher)(nil)
