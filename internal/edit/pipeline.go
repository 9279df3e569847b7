// SPDX-License-Identifier: MIT
/*
Package edit applies the active mode's band gains to its input signal and
refreshes the three output views with the result.

Each Apply makes exactly one remote edit call: the AI service when the mode
is musical or human_voices with its AI toggle on, the deterministic
equalizer otherwise. Applies are sequenced; a result whose sequence number
has been overtaken by a later submission, or whose mode has been switched
away from, is discarded with ErrStale instead of being shown.
*/
package edit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	applog "eqviewer/internal/log"
	"eqviewer/internal/series"
	"eqviewer/internal/service"
	"eqviewer/internal/session"
)

// ErrStale is returned for an edit superseded before it could be committed.
var ErrStale = session.ErrStale

// Result describes a committed edit.
type Result struct {
	Seq        uint64 `json:"seq"`
	Mode       string `json:"mode"`
	OutputRef  string `json:"outputRef"`
	SampleRate int    `json:"sampleRate"`
	UsedAI     bool   `json:"usedAI"`
}

// Pipeline runs equalizer edits against a session state.
type Pipeline struct {
	state       *session.State
	equalizer   service.EqualizerService
	ai          service.AIService
	spectrogram service.SpectrogramService
	sink        service.OutputSink

	mu     sync.Mutex
	latest uint64
}

// NewPipeline wires the collaborators of an edit.
func NewPipeline(
	state *session.State,
	equalizer service.EqualizerService,
	ai service.AIService,
	spectrogram service.SpectrogramService,
	sink service.OutputSink,
) *Pipeline {
	return &Pipeline{
		state:       state,
		equalizer:   equalizer,
		ai:          ai,
		spectrogram: spectrogram,
		sink:        sink,
	}
}

func (p *Pipeline) submit() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest++
	return p.latest
}

func (p *Pipeline) superseded(seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return seq != p.latest
}

// Apply edits the active mode. Band validation and readiness checks happen
// before any remote call. On failure no view and no document field changes.
func (p *Pipeline) Apply(ctx context.Context) (Result, error) {
	ticket, err := p.state.Ticket()
	if err != nil {
		return Result{}, err
	}
	input := p.state.View(session.InputWaveform).Data()
	if len(input.Values) == 0 || input.SampleRate <= 0 {
		return Result{}, fmt.Errorf("%w: input signal for %q is not loaded", session.ErrNotReady, ticket.Mode)
	}
	for _, b := range ticket.Bands {
		if err := b.Validate(); err != nil {
			return Result{}, err
		}
	}

	seq := p.submit()
	applog.Debugf("EditPipeline: #%d %q with %d bands (ai=%t)", seq, ticket.Mode, len(ticket.Bands), ticket.UseAI)

	var res service.EditResult
	if ticket.UseAI {
		sig := service.Signal{Samples: input.Values, SampleRate: input.SampleRate, Ref: ticket.InputRef}
		res, err = p.ai.Enhance(ctx, ticket.Mode, sig, ticket.Bands)
	} else {
		res, err = p.equalizer.Equalize(ctx, input.Values, input.SampleRate, ticket.Bands)
	}
	if err != nil {
		applog.Errorf("EditPipeline: #%d %q failed: %v", seq, ticket.Mode, err)
		return Result{}, err
	}

	rate := res.SampleRate
	if rate <= 0 {
		rate = input.SampleRate
	}

	gram, err := p.spectrogram.Spectrogram(ctx, res.Samples, rate)
	if err != nil {
		applog.Errorf("EditPipeline: #%d output spectrogram failed: %v", seq, err)
		return Result{}, err
	}

	if p.superseded(seq) {
		applog.Debugf("EditPipeline: #%d superseded before commit", seq)
		return Result{}, ErrStale
	}

	// Saving can take as long as a remote call; the session stays unlocked
	// meanwhile. An edit overtaken after saving leaves its file unused.
	ref, err := p.sink.Save(ctx, ticket.Mode, service.Signal{Samples: res.Samples, SampleRate: rate})
	if err != nil {
		err = fmt.Errorf("persist output: %w", err)
		applog.Errorf("EditPipeline: #%d %v", seq, err)
		return Result{}, err
	}

	err = p.state.CommitEdit(ticket, session.EditOutput{
		Ref:         ref,
		Waveform:    series.WaveformData(res.Samples, rate, ref),
		Spectrum:    series.SpectrumData(res.Spectrum.Frequencies, res.Spectrum.Magnitudes),
		Spectrogram: series.SpectrogramData(gram.Times, gram.Frequencies, gram.Grid),
	}, func() error {
		if p.superseded(seq) {
			return ErrStale
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStale) {
			applog.Debugf("EditPipeline: #%d discarded as stale", seq)
		} else {
			applog.Errorf("EditPipeline: #%d commit failed: %v", seq, err)
		}
		return Result{}, err
	}

	applog.Infof("EditPipeline: #%d %q committed as %s", seq, ticket.Mode, ref)
	return Result{
		Seq:        seq,
		Mode:       ticket.Mode,
		OutputRef:  ref,
		SampleRate: rate,
		UsedAI:     ticket.UseAI,
	}, nil
}
