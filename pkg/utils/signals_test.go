// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"os"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

var testMagnitudes []float64

func TestMain(m *testing.M) {
	testMagnitudes = make([]float64, testSize)

	// Creates a "hill" with peak at position testSize/4.
	for i := range testMagnitudes {
		testMagnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2))
	}

	os.Exit(m.Run())
}

func TestComplexWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate int
	}{
		{"Standard", 1024, 44100},
		{"Small", 16, 8000},
		{"Large", 8192, 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComplexWave(tt.size, tt.sampleRate)

			if len(result) != tt.size {
				t.Errorf("ComplexWave() buffer size = %d, want %d", len(result), tt.size)
			}

			peak := 0.0
			for _, v := range result {
				peak = math.Max(peak, math.Abs(v))
			}
			if peak == 0 {
				t.Errorf("ComplexWave() produced all zeros")
			}
			if peak > 0.9 {
				t.Errorf("ComplexWave() peak = %f, want <= 0.9", peak)
			}
		})
	}
}

func TestSineWave(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		frequency  float64
	}{
		{"A4 Note", 44100, testFrequency},
		{"Middle C", 44100, 261.63},
		{"High Sample Rate", 192000, testFrequency},
		{"Low Sample Rate", 8000, testFrequency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SineWave(tt.frequency, tt.sampleRate, testSize, 1)

			if len(result) != testSize {
				t.Fatalf("SineWave() buffer size = %d, want %d", len(result), testSize)
			}

			samplesPerCycle := float64(tt.sampleRate) / tt.frequency
			if float64(testSize) <= samplesPerCycle {
				return
			}

			crossCount := 0
			for i := 1; i < testSize; i++ {
				if (result[i-1] < 0 && result[i] >= 0) || (result[i-1] >= 0 && result[i] < 0) {
					crossCount++
				}
			}

			// Two crossings per cycle, 20% margin for phase alignment.
			expected := float64(testSize) / (samplesPerCycle / 2)
			tolerance := 0.2 * expected
			if math.Abs(float64(crossCount)-expected) > tolerance {
				t.Errorf("SineWave() zero crossings = %d, expected approximately %.1f±%.1f",
					crossCount, expected, tolerance)
			}
		})
	}
}

func TestScale(t *testing.T) {
	in := []float64{0.1, -0.1, 0.2, -0.2}
	out := Scale(in, 1.5)
	want := []float64{0.15, -0.15, 0.3, -0.3}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("Scale()[%d] = %f, want %f", i, out[i], want[i])
		}
	}
	if in[0] != 0.1 {
		t.Errorf("Scale() modified its input")
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", testMagnitudes, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", testMagnitudes, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", testMagnitudes, 0, testSize / 3, testSize / 4},
		{"Negative Start", testMagnitudes, -10, testSize - 1, testSize / 4},
		{"Out of Range End", testMagnitudes, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(tt.mags, tt.start, tt.end); got != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func BenchmarkComplexWave(b *testing.B) {
	for b.Loop() {
		_ = ComplexWave(testSize, testSampleRate)
	}
}
