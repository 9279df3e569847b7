// SPDX-License-Identifier: MIT

// Package bitint holds the power-of-two helpers used for audio buffer
// sizing. PortAudio performs best with power-of-two frames per buffer, so
// configured sizes are validated with ValidBufferSize and interactive choices
// are rounded with NextPowerOfTwo.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Values <= 0
// yield 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	// size-1 keeps exact powers of two unchanged.
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// ValidBufferSize reports whether frames is a power of two no larger than
// limit.
func ValidBufferSize(frames, limit int) bool {
	return IsPowerOfTwo(frames) && frames <= limit
}
