// SPDX-License-Identifier: MIT
package session

import (
	"fmt"

	"eqviewer/internal/series"
)

// Role names a logical view slot in the workbench.
type Role string

const (
	InputWaveform     Role = "input-waveform"
	OutputWaveform    Role = "output-waveform"
	InputSpectrum     Role = "input-spectrum"
	OutputSpectrum    Role = "output-spectrum"
	InputSpectrogram  Role = "input-spectrogram"
	OutputSpectrogram Role = "output-spectrogram"
)

// Roles lists every view role in display order.
var Roles = []Role{
	InputWaveform, OutputWaveform,
	InputSpectrum, OutputSpectrum,
	InputSpectrogram, OutputSpectrogram,
}

// OutputRoles are the views refreshed by an equalizer edit.
var OutputRoles = []Role{OutputWaveform, OutputSpectrum, OutputSpectrogram}

// Variant returns the view variant rendered in this role.
func (r Role) Variant() series.Variant {
	switch r {
	case InputSpectrum, OutputSpectrum:
		return series.Spectrum
	case InputSpectrogram, OutputSpectrogram:
		return series.Spectrogram
	default:
		return series.Waveform
	}
}

// IsOutput reports whether the role shows the processed signal.
func (r Role) IsOutput() bool {
	return r == OutputWaveform || r == OutputSpectrum || r == OutputSpectrogram
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown view role %q", s)
}
