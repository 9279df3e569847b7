// SPDX-License-Identifier: MIT
/*
Package service defines the remote collaborators the workbench consumes and
their default implementations: an HTTP client for the analysis, equalizer
and AI endpoints, a WAV resource loader with a decoded-signal cache, and
output sinks that persist edited signals.
*/
package service

import (
	"context"
	"errors"
	"fmt"

	"eqviewer/internal/session"
)

var (
	// ErrResourceUnavailable is returned when a signal reference is empty,
	// unreachable or cannot be decoded.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrAnalysis is returned when the spectrum or spectrogram service fails.
	ErrAnalysis = errors.New("analysis service failed")

	// ErrEqualizer is the sentinel behind every *EqualizerError.
	ErrEqualizer = errors.New("equalizer failed")

	// ErrAIService is the sentinel behind every *AIServiceError.
	ErrAIService = errors.New("AI service failed")
)

// EqualizerError carries the equalizer's message verbatim.
type EqualizerError struct {
	Status  int
	Message string
}

func (e *EqualizerError) Error() string { return e.Message }

func (e *EqualizerError) Unwrap() error { return ErrEqualizer }

// AIServiceError carries the AI service's message verbatim.
type AIServiceError struct {
	Mode    string
	Status  int
	Message string
}

func (e *AIServiceError) Error() string { return e.Message }

func (e *AIServiceError) Unwrap() error { return ErrAIService }

// Signal is a decoded mono signal.
type Signal struct {
	Samples    []float64
	SampleRate int
	Ref        string
}

// Spectrum is a frequency-ascending magnitude spectrum.
type Spectrum struct {
	Frequencies []float64 `json:"frequencies"`
	Magnitudes  []float64 `json:"magnitudes"`
}

// Spectrogram is a magnitude grid indexed [frequency][time].
type Spectrogram struct {
	Times       []float64   `json:"x"`
	Frequencies []float64   `json:"y"`
	Grid        [][]float64 `json:"z"`
}

// EditResult is the output of an equalizer or AI edit. SampleRate is zero
// when the service did not report one.
type EditResult struct {
	Samples    []float64
	SampleRate int
	Spectrum   Spectrum
}

// ResourceLoader resolves a signal reference to decoded samples.
type ResourceLoader interface {
	Load(ctx context.Context, ref string) (Signal, error)
}

// SpectrumService computes the magnitude spectrum of a signal.
type SpectrumService interface {
	Spectrum(ctx context.Context, samples []float64, sampleRate int) (Spectrum, error)
}

// SpectrogramService computes the spectrogram of a signal.
type SpectrogramService interface {
	Spectrogram(ctx context.Context, samples []float64, sampleRate int) (Spectrogram, error)
}

// EqualizerService applies deterministic band gains.
type EqualizerService interface {
	Equalize(ctx context.Context, samples []float64, sampleRate int, bands []session.Band) (EditResult, error)
}

// AIService applies AI stem gains for musical and human_voices modes.
type AIService interface {
	Enhance(ctx context.Context, mode string, input Signal, bands []session.Band) (EditResult, error)
}

// OutputSink persists an edited signal and returns its new reference.
type OutputSink interface {
	Save(ctx context.Context, mode string, sig Signal) (string, error)
}

func unavailable(ref string, err error) error {
	return fmt.Errorf("%w: %q: %v", ErrResourceUnavailable, ref, err)
}
