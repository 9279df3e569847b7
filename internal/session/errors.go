// SPDX-License-Identifier: MIT
package session

import "errors"

var (
	// ErrInvalidMode is returned for a mode name absent from the document or
	// a mode that has no output signal.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrInvalidBand is returned for low > high, a gain outside [0, 2], or an
	// out-of-range band index.
	ErrInvalidBand = errors.New("invalid band")

	// ErrNotReady is returned when an operation needs data that is not loaded.
	ErrNotReady = errors.New("not ready")

	// ErrStale marks a result that was superseded by a newer edit, a mode
	// switch, or a document reset before it could be applied.
	ErrStale = errors.New("stale result discarded")
)
