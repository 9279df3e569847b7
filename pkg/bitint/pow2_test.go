// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},     // Negative number
		{0, 1},       // Zero
		{1, 1},       // Smallest power
		{8, 8},       // Already power of two
		{10, 16},     // Not power of two
		{1000, 1024}, // Typical buffer request
		{5000, 8192}, // Above the largest preset
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			if got := NextPowerOfTwo(tt.n); got != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, got, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-8, false},
		{0, false},
		{1, true},
		{7, false},
		{1024, true},
		{1536, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.n), func(t *testing.T) {
			if got := IsPowerOfTwo(tt.n); got != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, got, tt.expected)
			}
		})
	}
}

func TestValidBufferSize(t *testing.T) {
	tests := []struct {
		frames, limit int
		expected      bool
	}{
		{1024, 8192, true},
		{8192, 8192, true},
		{16384, 8192, false},
		{1000, 8192, false},
		{0, 8192, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.frames, tt.limit), func(t *testing.T) {
			if got := ValidBufferSize(tt.frames, tt.limit); got != tt.expected {
				t.Errorf("ValidBufferSize(%d, %d) = %v, expected %v", tt.frames, tt.limit, got, tt.expected)
			}
		})
	}
}

func BenchmarkNextPowerOfTwo(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		NextPowerOfTwo(i & 0xFFFF)
	}
}
