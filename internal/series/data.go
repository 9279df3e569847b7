// SPDX-License-Identifier: MIT
package series

import (
	"fmt"
	"strings"
)

// Variant selects how a View interprets and slices its data.
type Variant int

const (
	Waveform    Variant = iota // Time-domain samples.
	Spectrum                   // Frequency/magnitude pairs.
	Spectrogram                // [frequency][time] magnitude grid.
)

// String returns the lower-case variant name.
func (v Variant) String() string {
	switch v {
	case Waveform:
		return "waveform"
	case Spectrum:
		return "spectrum"
	case Spectrogram:
		return "spectrogram"
	default:
		return "unknown"
	}
}

// ParseVariant converts a case-insensitive name to a Variant.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(name) {
	case "waveform":
		return Waveform, nil
	case "spectrum":
		return Spectrum, nil
	case "spectrogram":
		return Spectrogram, nil
	default:
		return Waveform, fmt.Errorf("unknown series variant: '%s'", name)
	}
}

// Data is one series plus its derived axes. Which fields are meaningful
// depends on the variant:
//   - Waveform: Values (samples), SampleRate, optional Times, Ref.
//   - Spectrum: Frequencies and Values (magnitudes), same length.
//   - Spectrogram: Times, Frequencies and Grid indexed [frequency][time].
type Data struct {
	Values      []float64
	Grid        [][]float64
	SampleRate  int
	Times       []float64
	Frequencies []float64
	Ref         string
}

// WaveformData builds waveform data for samples at sampleRate from ref.
func WaveformData(samples []float64, sampleRate int, ref string) Data {
	return Data{Values: samples, SampleRate: sampleRate, Ref: ref}
}

// SpectrumData builds spectrum data from frequency-ascending pairs.
func SpectrumData(frequencies, magnitudes []float64) Data {
	return Data{Frequencies: frequencies, Values: magnitudes}
}

// SpectrogramData builds spectrogram data from its axes and grid.
func SpectrogramData(times, frequencies []float64, grid [][]float64) Data {
	return Data{Times: times, Frequencies: frequencies, Grid: grid}
}

// length returns the size of the windowed axis, or 0 when the data cannot be
// displayed.
func (d Data) length(variant Variant) int {
	switch variant {
	case Waveform:
		return len(d.Values)
	case Spectrum:
		return min(len(d.Values), len(d.Frequencies))
	case Spectrogram:
		return gridTimes(d.Grid)
	default:
		return 0
	}
}

// gridTimes returns the time dimension of a [frequency][time] grid, or 0 when
// the grid is empty or ragged.
func gridTimes(grid [][]float64) int {
	if len(grid) == 0 {
		return 0
	}
	numTimes := len(grid[0])
	for _, row := range grid[1:] {
		if len(row) != numTimes {
			return 0
		}
	}
	return numTimes
}
