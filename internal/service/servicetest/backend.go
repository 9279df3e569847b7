// SPDX-License-Identifier: MIT

// Package servicetest provides an in-memory backend implementing every
// service interface, for tests of the packages that orchestrate them.
package servicetest

import (
	"context"
	"fmt"
	"math"
	"sync"

	"eqviewer/internal/service"
	"eqviewer/internal/session"
	"eqviewer/pkg/utils"
)

// Call names passed to Hook and Count.
const (
	CallLoad        = "load"
	CallSpectrum    = "spectrum"
	CallSpectrogram = "spectrogram"
	CallEqualize    = "equalize"
	CallEnhance     = "enhance"
	CallSave        = "save"
)

// Backend serves signals from memory. The default equalizer and AI service
// scale every sample by the first band's gain; spectra are the absolute
// sample values.
type Backend struct {
	// Hook runs at the start of every call; a non-nil error fails the call.
	Hook func(ctx context.Context, call string, arg string) error

	// Fail maps a call name to the error it returns.
	Fail map[string]error

	// EditRate, when set, is reported as the sample rate of edit results.
	EditRate int

	mu      sync.Mutex
	signals map[string]service.Signal
	calls   map[string]int
	saved   int
}

var (
	_ service.ResourceLoader     = (*Backend)(nil)
	_ service.SpectrumService    = (*Backend)(nil)
	_ service.SpectrogramService = (*Backend)(nil)
	_ service.EqualizerService   = (*Backend)(nil)
	_ service.AIService          = (*Backend)(nil)
	_ service.OutputSink         = (*Backend)(nil)
)

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		Fail:    make(map[string]error),
		signals: make(map[string]service.Signal),
		calls:   make(map[string]int),
	}
}

// Put registers samples under ref.
func (b *Backend) Put(ref string, samples []float64, sampleRate int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals[ref] = service.Signal{Samples: samples, SampleRate: sampleRate, Ref: ref}
}

// Signal returns the samples stored under ref.
func (b *Backend) Signal(ref string) (service.Signal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sig, ok := b.signals[ref]
	return sig, ok
}

// Count returns how many times call was made.
func (b *Backend) Count(call string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[call]
}

func (b *Backend) enter(ctx context.Context, call, arg string) error {
	b.mu.Lock()
	b.calls[call]++
	err := b.Fail[call]
	hook := b.Hook
	b.mu.Unlock()

	if hook != nil {
		if herr := hook(ctx, call, arg); herr != nil {
			return herr
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Load implements service.ResourceLoader.
func (b *Backend) Load(ctx context.Context, ref string) (service.Signal, error) {
	if err := b.enter(ctx, CallLoad, ref); err != nil {
		return service.Signal{}, err
	}
	sig, ok := b.Signal(ref)
	if !ok {
		return service.Signal{}, fmt.Errorf("%w: %q", service.ErrResourceUnavailable, ref)
	}
	return sig, nil
}

// Spectrum implements service.SpectrumService.
func (b *Backend) Spectrum(ctx context.Context, samples []float64, sampleRate int) (service.Spectrum, error) {
	if err := b.enter(ctx, CallSpectrum, ""); err != nil {
		return service.Spectrum{}, err
	}
	return Magnitudes(samples, sampleRate), nil
}

// Spectrogram implements service.SpectrogramService.
func (b *Backend) Spectrogram(ctx context.Context, samples []float64, sampleRate int) (service.Spectrogram, error) {
	if err := b.enter(ctx, CallSpectrogram, ""); err != nil {
		return service.Spectrogram{}, err
	}
	sp := Magnitudes(samples, sampleRate)
	times := make([]float64, len(samples))
	for i := range times {
		times[i] = float64(i) / float64(max(sampleRate, 1))
	}
	return service.Spectrogram{
		Times:       times,
		Frequencies: []float64{0},
		Grid:        [][]float64{sp.Magnitudes},
	}, nil
}

// Equalize implements service.EqualizerService.
func (b *Backend) Equalize(ctx context.Context, samples []float64, sampleRate int, bands []session.Band) (service.EditResult, error) {
	if err := b.enter(ctx, CallEqualize, bandKey(bands)); err != nil {
		return service.EditResult{}, err
	}
	return b.scale(samples, sampleRate, bands), nil
}

// Enhance implements service.AIService.
func (b *Backend) Enhance(ctx context.Context, mode string, input service.Signal, bands []session.Band) (service.EditResult, error) {
	if err := b.enter(ctx, CallEnhance, bandKey(bands)); err != nil {
		return service.EditResult{}, err
	}
	return b.scale(input.Samples, input.SampleRate, bands), nil
}

// Save implements service.OutputSink. Saved signals become loadable.
func (b *Backend) Save(ctx context.Context, mode string, sig service.Signal) (string, error) {
	if err := b.enter(ctx, CallSave, mode); err != nil {
		return "", err
	}
	b.mu.Lock()
	b.saved++
	ref := fmt.Sprintf("mem://%s/%d.wav", mode, b.saved)
	b.signals[ref] = service.Signal{Samples: sig.Samples, SampleRate: sig.SampleRate, Ref: ref}
	b.mu.Unlock()
	return ref, nil
}

func (b *Backend) scale(samples []float64, sampleRate int, bands []session.Band) service.EditResult {
	gain := 1.0
	if len(bands) > 0 {
		gain = bands[0].Value
	}
	out := utils.Scale(samples, gain)
	return service.EditResult{
		Samples:    out,
		SampleRate: b.EditRate,
		Spectrum:   Magnitudes(out, sampleRate),
	}
}

// Magnitudes is the backend's stand-in spectrum: bin i holds |samples[i]|.
func Magnitudes(samples []float64, sampleRate int) service.Spectrum {
	freqs := make([]float64, len(samples))
	mags := make([]float64, len(samples))
	for i, s := range samples {
		freqs[i] = float64(i*sampleRate) / float64(max(len(samples), 1))
		mags[i] = math.Abs(s)
	}
	return service.Spectrum{Frequencies: freqs, Magnitudes: mags}
}

func bandKey(bands []session.Band) string {
	if len(bands) == 0 {
		return ""
	}
	return fmt.Sprintf("%s=%g", bands[0].Name, bands[0].Value)
}
