// SPDX-License-Identifier: MIT
package workbench

import (
	"time"

	"eqviewer/internal/playback"
	"eqviewer/internal/series"
	"eqviewer/internal/session"
)

// Frame kinds.
const (
	FrameFull     = "frame"
	FramePlayback = "playback"
)

// ModeInfo describes one mode of the loaded document.
type ModeInfo struct {
	Name        string `json:"name"`
	Displayable bool   `json:"displayable"`
	AIMode      bool   `json:"aiMode"`
	AIEnabled   bool   `json:"aiEnabled"`
	Bands       int    `json:"bands"`
	AIBands     int    `json:"aiBands"`
}

// Frame is a render-ready snapshot of the workbench.
type Frame struct {
	Type       string                        `json:"type"`
	Mode       string                        `json:"mode,omitempty"`
	Status     string                        `json:"status,omitempty"`
	Error      string                        `json:"error,omitempty"`
	Generation uint64                        `json:"generation"`
	Modes      []ModeInfo                    `json:"modes,omitempty"`
	Bands      []session.Band                `json:"bands,omitempty"`
	UsesAI     bool                          `json:"usesAI"`
	Views      map[session.Role]series.Slice `json:"views"`
	Clocks     map[session.Role]string       `json:"clocks,omitempty"`
	Playing    map[session.Role]bool         `json:"playing,omitempty"`
}

// Modes lists the document's modes in display order.
func (w *Workbench) Modes() []ModeInfo {
	doc := w.state.Document()
	if doc == nil {
		return nil
	}
	names := doc.ModeNames()
	out := make([]ModeInfo, 0, len(names))
	for _, name := range names {
		entry := doc.Modes[name]
		out = append(out, ModeInfo{
			Name:        name,
			Displayable: entry.Displayable(),
			AIMode:      session.IsAIMode(name),
			AIEnabled:   w.state.AIEnabled(name),
			Bands:       len(entry.Sliders),
			AIBands:     len(entry.AISliders),
		})
	}
	return out
}

// Frame renders every view together with the mode and band state.
func (w *Workbench) Frame() Frame {
	mode := w.state.Mode()
	f := Frame{
		Type:       FrameFull,
		Mode:       mode,
		Generation: w.state.Generation(),
		Modes:      w.Modes(),
		Bands:      w.state.Bands(),
		UsesAI:     w.state.UsesAI(mode),
		Views:      make(map[session.Role]series.Slice, len(session.Roles)),
	}
	status, err := w.modes.Status()
	f.Status = status.String()
	if err != nil {
		f.Error = err.Error()
	}
	views := w.state.Views()
	for _, role := range session.Roles {
		f.Views[role] = views[role].Visible()
	}
	f.Clocks, f.Playing = clocks(views)
	return f
}

// PlaybackFrame renders only the waveform views, for position updates.
func (w *Workbench) PlaybackFrame() Frame {
	views := w.state.Views()
	f := Frame{
		Type:       FramePlayback,
		Generation: w.state.Generation(),
		Views:      make(map[session.Role]series.Slice, 2),
	}
	for _, role := range []session.Role{session.InputWaveform, session.OutputWaveform} {
		f.Views[role] = views[role].Visible()
	}
	f.Clocks, f.Playing = clocks(views)
	return f
}

// clocks formats the position of both waveforms and reports which of them
// is playing.
func clocks(views map[session.Role]*series.View) (map[session.Role]string, map[session.Role]bool) {
	out := make(map[session.Role]string, 2)
	playing := make(map[session.Role]bool, 2)
	for _, role := range []session.Role{session.InputWaveform, session.OutputWaveform} {
		v := views[role]
		var pos time.Duration
		if t := v.Track(); t != nil {
			pos = t.Position()
			playing[role] = t.Playing()
		}
		out[role] = playback.FormatClock(pos, v.Duration())
	}
	return out, playing
}
