// SPDX-License-Identifier: MIT
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Well-known mode names.
const (
	ModeGeneric     = "generic"
	ModeMusical     = "musical"
	ModeHumanVoices = "human_voices"

	keyOriginalSignal = "original_signal"
)

// Gain bounds accepted for a band value.
const (
	MinGain     = 0.0
	MaxGain     = 2.0
	DefaultGain = 1.0
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Band is a gain-adjustable frequency range.
type Band struct {
	Name  string  `json:"name"`
	Low   float64 `json:"low"`
	High  float64 `json:"high" validate:"gtefield=Low"`
	Value float64 `json:"value" validate:"gte=0,lte=2"`
}

// NewBand returns a band with the default gain.
func NewBand(name string, low, high float64) Band {
	return Band{Name: name, Low: low, High: high, Value: DefaultGain}
}

// Validate checks low <= high and value within [0, 2].
func (b Band) Validate() error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: %q (%g-%g Hz, gain %g): %v", ErrInvalidBand, b.Name, b.Low, b.High, b.Value, err)
	}
	return nil
}

// ModeEntry is the per-mode part of a session document.
type ModeEntry struct {
	InputSignal  string `json:"input_signal,omitempty"`
	OutputSignal string `json:"output_signal"`
	Sliders      []Band `json:"sliders"`
	AISliders    []Band `json:"AI_sliders,omitempty"`
}

// Displayable reports whether the mode has an output to show.
func (m *ModeEntry) Displayable() bool {
	return m != nil && m.OutputSignal != ""
}

func (m *ModeEntry) clone() *ModeEntry {
	if m == nil {
		return nil
	}
	c := *m
	c.Sliders = slices.Clone(m.Sliders)
	c.AISliders = slices.Clone(m.AISliders)
	return &c
}

// Document is a loaded session bundle: a legacy top-level input reference and
// one entry per mode name.
type Document struct {
	OriginalSignal string
	Modes          map[string]*ModeEntry
}

// UnmarshalJSON decodes the flat `{original_signal, <mode>: {...}}` shape.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("session document: %w", err)
	}

	d.Modes = make(map[string]*ModeEntry, len(raw))
	for key, value := range raw {
		if key == keyOriginalSignal {
			if err := json.Unmarshal(value, &d.OriginalSignal); err != nil {
				return fmt.Errorf("session document: %s: %w", key, err)
			}
			continue
		}
		entry := &ModeEntry{}
		if err := json.Unmarshal(value, entry); err != nil {
			return fmt.Errorf("session document: mode %q: %w", key, err)
		}
		d.Modes[key] = entry
	}
	return nil
}

// MarshalJSON encodes the document back into its flat shape.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Modes)+1)
	if d.OriginalSignal != "" {
		out[keyOriginalSignal] = d.OriginalSignal
	}
	for name, entry := range d.Modes {
		out[name] = entry
	}
	return json.Marshal(out)
}

// ParseDocument decodes a session bundle.
func ParseDocument(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadDocument reads and decodes a session bundle from disk.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	return ParseDocument(data)
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := &Document{
		OriginalSignal: d.OriginalSignal,
		Modes:          make(map[string]*ModeEntry, len(d.Modes)),
	}
	for name, entry := range d.Modes {
		c.Modes[name] = entry.clone()
	}
	return c
}

// ModeNames returns mode names with "generic" first and the rest sorted.
func (d *Document) ModeNames() []string {
	names := make([]string, 0, len(d.Modes))
	for name := range d.Modes {
		if name != ModeGeneric {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := d.Modes[ModeGeneric]; ok {
		names = append([]string{ModeGeneric}, names...)
	}
	return names
}

// InputRef returns the mode's input reference, falling back to the top-level
// original signal.
func (d *Document) InputRef(mode string) string {
	if entry, ok := d.Modes[mode]; ok && entry.InputSignal != "" {
		return entry.InputSignal
	}
	return d.OriginalSignal
}

// IsAIMode reports whether a mode supports the AI path.
func IsAIMode(mode string) bool {
	return mode == ModeMusical || mode == ModeHumanVoices
}
