// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	"eqviewer/internal/config"
	"eqviewer/internal/player"
	"eqviewer/internal/series"
	"eqviewer/internal/service/servicetest"
	"eqviewer/internal/session"
	"eqviewer/internal/workbench"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkbench(t *testing.T) (*workbench.Workbench, *servicetest.Backend) {
	t.Helper()
	backend := servicetest.New()
	backend.Put("original.wav", []float64{0.1, -0.1, 0.2, -0.2}, 4)
	backend.Put("generic_out.wav", []float64{0.1, -0.1, 0.2, -0.2}, 4)
	backend.Put("musical_out.wav", []float64{0.3, 0.3, 0.3, 0.3}, 4)

	opener, err := player.NewOpener(player.Options{Backend: player.BackendClock, UpdateInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	w := workbench.New(workbench.Services{
		Loader:      backend,
		Spectrum:    backend,
		Spectrogram: backend,
		Equalizer:   backend,
		AI:          backend,
		Sink:        backend,
	}, workbench.WithViewport(config.Default().Viewport), workbench.WithOpener(opener))
	t.Cleanup(w.Close)

	doc := &session.Document{
		OriginalSignal: "original.wav",
		Modes: map[string]*session.ModeEntry{
			session.ModeGeneric: {
				OutputSignal: "generic_out.wav",
				Sliders:      []session.Band{session.NewBand("Bass", 20, 250)},
			},
			session.ModeMusical: {
				OutputSignal: "musical_out.wav",
				Sliders: []session.Band{
					session.NewBand("Drums", 20, 150),
					session.NewBand("Guitar", 150, 1200),
					session.NewBand("Violin", 1200, 4000),
				},
			},
			session.ModeHumanVoices: {},
		},
	}
	require.NoError(t, w.Open(context.Background(), doc))
	return w, backend
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain runs cmd and every command it batches, collecting the messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// press sends key to m and feeds any command results back in.
func press(m *InspectorModel, key tea.KeyMsg) {
	_, cmd := m.Update(key)
	for _, msg := range drain(cmd) {
		m.Update(msg)
	}
}

func newInspector(t *testing.T, sess Session) *InspectorModel {
	t.Helper()
	m := NewInspector(context.Background(), sess)
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 60})
	return m
}

func TestInspectorViewCommands(t *testing.T) {
	w, _ := newTestWorkbench(t)
	m := newInspector(t, w)

	press(m, runes("+"))
	assert.Equal(t, 1.5, m.frame.Views[session.InputWaveform].Zoom)

	press(m, runes("l"))
	assert.Greater(t, m.frame.Views[session.InputWaveform].Offset, 0.0)

	press(m, runes("0"))
	assert.Equal(t, 1.0, m.frame.Views[session.InputWaveform].Zoom)
	assert.Equal(t, 0.0, m.frame.Views[session.InputWaveform].Offset)

	press(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, session.OutputWaveform, m.focused())
	press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	press(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, session.OutputSpectrogram, m.focused())
}

func TestInspectorEditAndApply(t *testing.T) {
	w, backend := newTestWorkbench(t)
	m := newInspector(t, w)

	press(m, runes("]"))
	require.Len(t, m.frame.Bands, 1)
	assert.InDelta(t, 1.1, m.frame.Bands[0].Value, 1e-9)

	press(m, runes("a"))
	assert.Equal(t, 1, backend.Count(servicetest.CallEqualize))
	assert.Equal(t, 0, m.pending)
	assert.False(t, m.failed)
	assert.Equal(t, "apply done", m.notice)
}

func TestInspectorModeCycleAndBands(t *testing.T) {
	w, _ := newTestWorkbench(t)
	m := newInspector(t, w)

	press(m, runes("m"))
	assert.Equal(t, session.ModeMusical, m.frame.Mode, "human_voices has no output and is skipped")
	require.Len(t, m.frame.Bands, 3)

	press(m, tea.KeyMsg{Type: tea.KeyDown})
	press(m, tea.KeyMsg{Type: tea.KeyDown})
	press(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.band)

	press(m, runes("x"))
	require.Len(t, m.frame.Bands, 2)
	assert.Equal(t, 1, m.band, "selection follows the shorter list")

	view := m.View()
	assert.Contains(t, view, "EQ Viewer")
	assert.Contains(t, view, session.ModeMusical)
	assert.Contains(t, view, "Guitar")
}

func TestInspectorPlayback(t *testing.T) {
	w, _ := newTestWorkbench(t)
	m := newInspector(t, w)

	press(m, tea.KeyMsg{Type: tea.KeyTab})
	press(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.True(t, m.frame.Playing[session.OutputWaveform])
	assert.False(t, m.frame.Playing[session.InputWaveform])

	press(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.False(t, m.frame.Playing[session.OutputWaveform])

	press(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	press(m, runes("s"))
	assert.False(t, m.frame.Playing[session.OutputWaveform])
	assert.Equal(t, "0:00 / 0:01", m.frame.Clocks[session.OutputWaveform])
}

func TestInspectorQuit(t *testing.T) {
	w, _ := newTestWorkbench(t)
	m := newInspector(t, w)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Nil(t, m.unsub)
}

type failingSession struct {
	*workbench.Workbench
}

func (failingSession) Execute(context.Context, workbench.Command) (workbench.Reply, error) {
	return workbench.Reply{}, errors.New("service unavailable")
}

func TestInspectorReportsFailures(t *testing.T) {
	w, _ := newTestWorkbench(t)
	m := newInspector(t, failingSession{w})

	press(m, runes("+"))
	assert.True(t, m.failed)
	assert.Contains(t, m.notice, "zoomIn failed")

	press(m, runes("r"))
	assert.True(t, m.failed)
	assert.Contains(t, m.notice, "revert failed: service unavailable")
	assert.Contains(t, m.View(), "service unavailable")
}

func TestDescribe(t *testing.T) {
	assert.Empty(t, describe(series.Slice{Empty: true}, "0:00 / 0:00"))

	w, _ := newTestWorkbench(t)
	f := w.Frame()
	assert.Contains(t, describe(f.Views[session.InputSpectrum], ""), "peak")
	assert.Contains(t, describe(f.Views[session.InputWaveform], f.Clocks[session.InputWaveform]), "0:00 / 0:01")
}
