// SPDX-License-Identifier: MIT
/*
Package mode switches the workbench between the modes of a session document.

A switch fetches the mode's input and output signals, then their spectra and
spectrograms, all in parallel, and only then pushes the six series into the
existing views in one commit. If any fetch fails nothing is written, so the
previously displayed mode stays visible.
*/
package mode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	applog "eqviewer/internal/log"
	"eqviewer/internal/series"
	"eqviewer/internal/service"
	"eqviewer/internal/session"

	"golang.org/x/sync/errgroup"
)

// ErrBusy is returned by SetMode while another switch is loading.
var ErrBusy = errors.New("mode switch already in progress")

// Status is the controller's load state.
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Controller drives mode switches against a session state.
type Controller struct {
	state       *session.State
	loader      service.ResourceLoader
	spectrum    service.SpectrumService
	spectrogram service.SpectrogramService
	onStatus    func(Status, error)

	mu      sync.Mutex
	status  Status
	lastErr error
	done    chan struct{} // Closed when the current load finishes.
	reload  bool          // Reload requested while loading.
}

// maxAttempts bounds how often one switch restarts after a reset.
const maxAttempts = 3

// Option configures a Controller.
type Option func(*Controller)

// WithStatusHook is called after every status transition.
func WithStatusHook(fn func(Status, error)) Option {
	return func(c *Controller) { c.onStatus = fn }
}

// NewController creates an idle controller.
func NewController(
	state *session.State,
	loader service.ResourceLoader,
	spectrum service.SpectrumService,
	spectrogram service.SpectrogramService,
	opts ...Option,
) *Controller {
	c := &Controller{
		state:       state,
		loader:      loader,
		spectrum:    spectrum,
		spectrogram: spectrogram,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current status and the error of the last failed switch.
func (c *Controller) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.lastErr
}

func (c *Controller) setStatus(s Status, err error) {
	c.mu.Lock()
	c.status = s
	c.lastErr = err
	hook := c.onStatus
	c.mu.Unlock()

	if hook != nil {
		hook(s, err)
	}
}

// side holds everything fetched for one of the two signals of a mode.
type side struct {
	signal      service.Signal
	spectrum    service.Spectrum
	spectrogram service.Spectrogram
}

// SetMode loads name and makes it the active mode. Validation failures are
// returned without changing status; fetch failures move to Error and leave
// the views untouched. A reset of the document while loading restarts the
// switch against the restored document.
func (c *Controller) SetMode(ctx context.Context, name string) error {
	c.mu.Lock()
	if c.status == Loading {
		c.mu.Unlock()
		return ErrBusy
	}
	target, err := c.state.Resolve(name)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.status = Loading
	c.lastErr = nil
	c.reload = false
	done := make(chan struct{})
	c.done = done
	hook := c.onStatus
	c.mu.Unlock()
	if hook != nil {
		hook(Loading, nil)
	}
	defer close(done)

	start := time.Now()
	applog.Infof("ModeController: loading mode %q", name)

	err = c.load(ctx, target)
	for attempt := 1; attempt < maxAttempts && c.restart(err); attempt++ {
		applog.Infof("ModeController: document reset while loading %q, reloading", name)
		if target, err = c.retarget(name); err == nil {
			err = c.load(ctx, target)
		}
	}
	if err != nil {
		err = fmt.Errorf("set mode %q: %w", name, err)
		applog.Errorf("ModeController: %v", err)
		c.setStatus(Error, err)
		return err
	}

	applog.Infof("ModeController: mode %q ready in %v", name, time.Since(start).Round(time.Millisecond))
	c.setStatus(Ready, nil)
	return nil
}

// Reload re-fetches the active mode, e.g. after a document reset. While a
// switch is loading, the reload is handed to that switch and Reload waits for
// its outcome.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.status != Loading {
		c.mu.Unlock()
		return c.SetMode(ctx, c.state.Mode())
	}
	c.reload = true
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	_, err := c.Status()
	return err
}

// restart reports whether a finished load must run again: its commit was
// discarded by a reset, or a reload was requested meanwhile.
func (c *Controller) restart(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reload {
		c.reload = false
		return err == nil || errors.Is(err, session.ErrStale)
	}
	return errors.Is(err, session.ErrStale)
}

// retarget resolves name again, falling back to the active mode when the
// restored document no longer offers it.
func (c *Controller) retarget(name string) (session.Target, error) {
	target, err := c.state.Resolve(name)
	if err == nil {
		return target, nil
	}
	return c.state.Resolve(c.state.Mode())
}

func (c *Controller) load(ctx context.Context, target session.Target) error {
	in, out, err := c.fetch(ctx, target)
	if err != nil {
		return err
	}
	return c.state.CommitMode(target, func(views map[session.Role]*series.View) []func() {
		return append(
			push(views, session.InputWaveform, session.InputSpectrum, session.InputSpectrogram, in),
			push(views, session.OutputWaveform, session.OutputSpectrum, session.OutputSpectrogram, out)...,
		)
	})
}

func (c *Controller) fetch(ctx context.Context, t session.Target) (*side, *side, error) {
	in, out := &side{}, &side{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.signal, err = c.loader.Load(gctx, t.InputRef)
		return err
	})
	g.Go(func() (err error) {
		out.signal, err = c.loader.Load(gctx, t.OutputRef)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	g, gctx = errgroup.WithContext(ctx)
	for _, s := range []*side{in, out} {
		g.Go(func() (err error) {
			s.spectrum, err = c.spectrum.Spectrum(gctx, s.signal.Samples, s.signal.SampleRate)
			return err
		})
		g.Go(func() (err error) {
			s.spectrogram, err = c.spectrogram.Spectrogram(gctx, s.signal.Samples, s.signal.SampleRate)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

func push(views map[session.Role]*series.View, wave, spec, gram session.Role, s *side) []func() {
	return []func(){
		views[wave].Replace(series.WaveformData(s.signal.Samples, s.signal.SampleRate, s.signal.Ref)),
		views[spec].Replace(series.SpectrumData(s.spectrum.Frequencies, s.spectrum.Magnitudes)),
		views[gram].Replace(series.SpectrogramData(s.spectrogram.Times, s.spectrogram.Frequencies, s.spectrogram.Grid)),
	}
}
