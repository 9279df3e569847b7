// SPDX-License-Identifier: MIT
/*
Package workbench is the presentation-facing facade of the equalizer viewer.
It owns one session state together with the mode controller and the edit
pipeline that mutate it, exposes every user action as a Command, and builds
render-ready Frames for the websocket and terminal adapters.

Playback position changes are coalesced into a single pending signal that
adapters drain with Positions; session changes are delivered through
Subscribe.
*/
package workbench

import (
	"context"
	"fmt"
	"time"

	"eqviewer/internal/config"
	"eqviewer/internal/edit"
	applog "eqviewer/internal/log"
	"eqviewer/internal/mode"
	"eqviewer/internal/playback"
	"eqviewer/internal/player"
	"eqviewer/internal/series"
	"eqviewer/internal/service"
	"eqviewer/internal/session"
	"eqviewer/internal/viewport"
)

// Services bundles the external collaborators of a workbench.
type Services struct {
	Loader      service.ResourceLoader
	Spectrum    service.SpectrumService
	Spectrogram service.SpectrogramService
	Equalizer   service.EqualizerService
	AI          service.AIService
	Sink        service.OutputSink
}

// Workbench wires the session state to its controllers.
type Workbench struct {
	state *session.State
	modes *mode.Controller
	edits *edit.Pipeline

	positions chan struct{}
}

// Option configures a Workbench.
type Option func(*options)

type options struct {
	maxPoints int
	maxZoom   float64
	zoomStep  float64
	opener    playback.Opener
}

// WithViewport applies the render cap and zoom limits to every view.
func WithViewport(vc config.ViewportConfig) Option {
	return func(o *options) {
		o.maxPoints = vc.MaxPoints
		o.maxZoom = vc.MaxZoom
		o.zoomStep = vc.ZoomStep
	}
}

// WithOpener enables playback on the waveform views.
func WithOpener(opener playback.Opener) Option {
	return func(o *options) { o.opener = opener }
}

// New creates a workbench around svc. No document is loaded yet.
func New(svc Services, opts ...Option) *Workbench {
	o := options{
		maxPoints: viewport.DefaultMaxPoints,
		maxZoom:   viewport.DefaultMaxZoom,
		zoomStep:  viewport.DefaultZoomStep,
	}
	for _, opt := range opts {
		opt(&o)
	}

	w := &Workbench{positions: make(chan struct{}, 1)}

	factory := func(role session.Role) *series.View {
		viewOpts := []series.Option{
			series.WithMaxPoints(o.maxPoints),
			series.WithViewport(viewport.WithMaxZoom(o.maxZoom), viewport.WithZoomStep(o.zoomStep)),
		}
		if o.opener != nil {
			viewOpts = append(viewOpts, series.WithPlayback(o.opener, w.notifyPosition))
		}
		return series.New(role.Variant(), viewOpts...)
	}

	w.state = session.NewState(factory)
	w.modes = mode.NewController(w.state, svc.Loader, svc.Spectrum, svc.Spectrogram,
		mode.WithStatusHook(func(s mode.Status, err error) {
			applog.Debugf("Workbench: mode status %s (err=%v)", s, err)
		}))
	w.edits = edit.NewPipeline(w.state, svc.Equalizer, svc.AI, svc.Spectrogram, svc.Sink)
	return w
}

// FromConfig builds the HTTP client, loader, sink and player from cfg.
func FromConfig(cfg *config.Config) (*Workbench, error) {
	client := service.NewClient(cfg.Service.BaseURL,
		service.WithAIBaseURL(cfg.Service.AIBaseURL),
		service.WithTimeout(cfg.Service.Timeout),
		service.WithEndpoints(service.Endpoints{
			Spectrum:    cfg.Service.Endpoints.Spectrum,
			Spectrogram: cfg.Service.Endpoints.Spectrogram,
			Equalizer:   cfg.Service.Endpoints.Equalizer,
			Save:        cfg.Service.Endpoints.Save,
			MusicAI:     cfg.Service.Endpoints.MusicAI,
			HumanAI:     cfg.Service.Endpoints.HumanAI,
		}),
	)
	loader := service.NewWAVLoader(cfg.Storage.AssetDir, cfg.Storage.CacheTTL, client.HTTP)

	var sink service.OutputSink = service.NewFileSink(cfg.Storage.OutputDir, loader)
	if cfg.Service.RemoteSink {
		sink = service.NewRemoteSink(client)
	}

	opener, err := player.NewOpener(player.Options{
		Backend:         player.Backend(cfg.Playback.Backend),
		DeviceID:        cfg.Playback.Device,
		FramesPerBuffer: cfg.Playback.FramesPerBuffer,
		UpdateInterval:  cfg.Playback.UpdateInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	applog.Infof("Workbench: backend %s, playback %s, sink %T",
		cfg.Service.BaseURL, cfg.Playback.Backend, sink)

	svc := Services{
		Loader:      loader,
		Spectrum:    client,
		Spectrogram: client,
		Equalizer:   client,
		AI:          client,
		Sink:        sink,
	}
	opts := []Option{WithViewport(cfg.Viewport)}
	if opener != nil {
		opts = append(opts, WithOpener(opener))
	}
	return New(svc, opts...), nil
}

// State exposes the underlying session state.
func (w *Workbench) State() *session.State { return w.state }

// Subscribe registers fn for session events.
func (w *Workbench) Subscribe(fn session.Listener) func() {
	return w.state.Subscribe(fn)
}

// Positions signals that a playback position changed. Bursts of updates
// collapse into one pending signal.
func (w *Workbench) Positions() <-chan struct{} { return w.positions }

func (w *Workbench) notifyPosition(time.Duration) {
	select {
	case w.positions <- struct{}{}:
	default:
	}
}

// Open installs doc and loads its initial mode.
func (w *Workbench) Open(ctx context.Context, doc *session.Document) error {
	if err := w.state.Load(doc); err != nil {
		return err
	}
	initial := w.state.Mode()
	if initial == "" {
		return fmt.Errorf("%w: no displayable mode", session.ErrInvalidMode)
	}
	return w.modes.SetMode(ctx, initial)
}

// OpenFile reads a session document from path and opens it.
func (w *Workbench) OpenFile(ctx context.Context, path string) error {
	doc, err := session.LoadDocument(path)
	if err != nil {
		return err
	}
	return w.Open(ctx, doc)
}

// Status reports the mode controller status.
func (w *Workbench) Status() (mode.Status, error) { return w.modes.Status() }

// Close stops playback on every view.
func (w *Workbench) Close() {
	for _, v := range w.state.Views() {
		if t := v.Track(); t != nil {
			t.Unbind()
		}
	}
}
