// SPDX-License-Identifier: MIT
package utils

import "math"

// SineWave returns size samples of a sine at frequency Hz.
func SineWave(frequency float64, sampleRate, size int, amplitude float64) []float64 {
	out := make([]float64, size)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return out
}

// ComplexWave returns a 440 Hz fundamental with two harmonics, peaking below
// full scale.
func ComplexWave(size, sampleRate int) []float64 {
	out := make([]float64, size)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = 0.9 * (math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2)
	}
	return out
}

// Scale returns samples multiplied by gain.
func Scale(samples []float64, gain float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s * gain
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude within
// [startBin, endBin], clamped to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
