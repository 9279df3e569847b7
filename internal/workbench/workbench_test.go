// SPDX-License-Identifier: MIT
package workbench

import (
	"context"
	"errors"
	"testing"
	"time"

	"eqviewer/internal/config"
	"eqviewer/internal/player"
	"eqviewer/internal/service/servicetest"
	"eqviewer/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument() *session.Document {
	return &session.Document{
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
				AISliders: []session.Band{session.NewBand("vocals", 0, 0)},
			},
			session.ModeHumanVoices: {},
		},
	}
}

func newTestWorkbench(t *testing.T) (*Workbench, *servicetest.Backend) {
	t.Helper()
	backend := servicetest.New()
	backend.Put("original.wav", []float64{0.1, -0.1, 0.2, -0.2}, 4)
	backend.Put("generic_out.wav", []float64{0.1, -0.1, 0.2, -0.2}, 4)
	backend.Put("musical_out.wav", []float64{0.3, 0.3, 0.3, 0.3}, 4)

	opener, err := player.NewOpener(player.Options{Backend: player.BackendClock, UpdateInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	w := New(Services{
		Loader:      backend,
		Spectrum:    backend,
		Spectrogram: backend,
		Equalizer:   backend,
		AI:          backend,
		Sink:        backend,
	}, WithViewport(config.Default().Viewport), WithOpener(opener))
	t.Cleanup(w.Close)

	require.NoError(t, w.Open(context.Background(), testDocument()))
	return w, backend
}

func exec(t *testing.T, w *Workbench, cmd Command) Reply {
	t.Helper()
	reply, err := w.Execute(context.Background(), cmd)
	require.NoError(t, err, "command %s", cmd.Type)
	return reply
}

func TestOpenRendersEveryView(t *testing.T) {
	w, _ := newTestWorkbench(t)

	f := w.Frame()
	assert.Equal(t, FrameFull, f.Type)
	assert.Equal(t, session.ModeGeneric, f.Mode)
	assert.Equal(t, "Ready", f.Status)
	assert.Empty(t, f.Error)
	for _, role := range session.Roles {
		assert.False(t, f.Views[role].Empty, "role %s", role)
	}
	assert.Equal(t, "0:00 / 0:01", f.Clocks[session.InputWaveform])

	require.Len(t, f.Modes, 3)
	assert.Equal(t, session.ModeGeneric, f.Modes[0].Name)
	assert.False(t, f.Modes[1].Displayable, "human_voices has no output")
	assert.Equal(t, session.ModeHumanVoices, f.Modes[1].Name)
	assert.True(t, f.Modes[2].AIMode)
	assert.Equal(t, 3, f.Modes[2].Bands)
}

func TestEditBassAndApply(t *testing.T) {
	w, backend := newTestWorkbench(t)

	exec(t, w, Command{Type: CmdSetBand, Index: 0, Value: 1.5})
	reply := exec(t, w, Command{Type: CmdApply})
	require.NotNil(t, reply.Edit)
	assert.False(t, reply.Edit.UsedAI)
	assert.Equal(t, 4, reply.Edit.SampleRate)
	assert.Equal(t, 1, backend.Count(servicetest.CallEqualize))
	assert.Equal(t, 0, backend.Count(servicetest.CallEnhance))

	out := w.State().View(session.OutputWaveform).Data()
	assert.InDeltaSlice(t, []float64{0.15, -0.15, 0.3, -0.3}, out.Values, 1e-12)

	exported := exec(t, w, Command{Type: CmdExport})
	doc, err := session.ParseDocument(exported.Document)
	require.NoError(t, err)
	assert.Equal(t, reply.Edit.OutputRef, doc.Modes[session.ModeGeneric].OutputSignal)
	assert.Equal(t, 1.5, doc.Modes[session.ModeGeneric].Sliders[0].Value)
}

func TestRemoveBandIsLocal(t *testing.T) {
	w, backend := newTestWorkbench(t)
	exec(t, w, Command{Type: CmdSetMode, Mode: session.ModeMusical})

	before := backend.Count(servicetest.CallEqualize)
	exec(t, w, Command{Type: CmdRemoveBand, Index: 1})

	bands := w.Frame().Bands
	require.Len(t, bands, 2)
	assert.Equal(t, "Drums", bands[0].Name)
	assert.Equal(t, "Violin", bands[1].Name)
	assert.Equal(t, before, backend.Count(servicetest.CallEqualize))

	_, err := w.Execute(context.Background(), Command{Type: CmdRemoveBand, Index: 5})
	assert.ErrorIs(t, err, session.ErrInvalidBand)
}

func TestAddBandValidates(t *testing.T) {
	w, _ := newTestWorkbench(t)

	exec(t, w, Command{Type: CmdAddBand, Band: &session.Band{Name: "Air", Low: 8000, High: 16000, Value: 1}})
	assert.Len(t, w.State().Bands(), 2)

	_, err := w.Execute(context.Background(), Command{Type: CmdAddBand, Band: &session.Band{Name: "Bad", Low: 500, High: 100, Value: 1}})
	assert.ErrorIs(t, err, session.ErrInvalidBand)
	_, err = w.Execute(context.Background(), Command{Type: CmdAddBand})
	assert.ErrorIs(t, err, session.ErrInvalidBand)
	assert.Len(t, w.State().Bands(), 2)
}

func TestToggleAISwitchesBandList(t *testing.T) {
	w, backend := newTestWorkbench(t)

	_, err := w.Execute(context.Background(), Command{Type: CmdToggleAI, Enabled: true})
	assert.ErrorIs(t, err, session.ErrInvalidMode, "generic has no AI path")

	exec(t, w, Command{Type: CmdSetMode, Mode: session.ModeMusical})
	exec(t, w, Command{Type: CmdToggleAI, Enabled: true})

	f := w.Frame()
	assert.True(t, f.UsesAI)
	require.Len(t, f.Bands, 1)
	assert.Equal(t, "vocals", f.Bands[0].Name)

	reply := exec(t, w, Command{Type: CmdApply})
	assert.True(t, reply.Edit.UsedAI)
	assert.Equal(t, 1, backend.Count(servicetest.CallEnhance))
	assert.Equal(t, 0, backend.Count(servicetest.CallEqualize))
}

func TestViewCommands(t *testing.T) {
	w, _ := newTestWorkbench(t)
	role := string(session.InputWaveform)

	reply := exec(t, w, Command{Type: CmdZoomIn, Role: role})
	require.NotNil(t, reply.Slice)
	assert.Equal(t, 1.5, reply.Slice.Zoom)

	reply = exec(t, w, Command{Type: CmdPan, Role: role, Offset: 0.9})
	assert.InDelta(t, 1-1/1.5, reply.Slice.Offset, 1e-12)

	reply = exec(t, w, Command{Type: CmdResetView, Role: role})
	assert.Equal(t, 1.0, reply.Slice.Zoom)
	assert.Equal(t, 0.0, reply.Slice.Offset)

	reply = exec(t, w, Command{Type: CmdZoomOut, Role: string(session.OutputSpectrogram)})
	assert.Equal(t, 1.0, reply.Slice.Zoom)

	_, err := w.Execute(context.Background(), Command{Type: CmdZoomIn, Role: "left-panel"})
	assert.Error(t, err)
}

func TestRevertRestoresOriginal(t *testing.T) {
	w, _ := newTestWorkbench(t)
	exec(t, w, Command{Type: CmdSetBand, Index: 0, Value: 2})
	exec(t, w, Command{Type: CmdApply})

	exec(t, w, Command{Type: CmdRevert})
	entry, err := w.State().Entry(session.ModeGeneric)
	require.NoError(t, err)
	assert.Equal(t, "generic_out.wav", entry.OutputSignal)
	assert.Equal(t, 1.0, entry.Sliders[0].Value)

	out := w.State().View(session.OutputWaveform).Data()
	assert.Equal(t, []float64{0.1, -0.1, 0.2, -0.2}, out.Values)
}

func TestRevertDuringModeSwitchKeepsViewsPopulated(t *testing.T) {
	w, backend := newTestWorkbench(t)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	backend.Hook = func(_ context.Context, call, _ string) error {
		if call == servicetest.CallSpectrum {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
		}
		return nil
	}

	switched := make(chan error, 1)
	go func() {
		_, err := w.Execute(context.Background(), Command{Type: CmdSetMode, Mode: session.ModeMusical})
		switched <- err
	}()
	<-entered

	reverted := make(chan error, 1)
	go func() {
		_, err := w.Execute(context.Background(), Command{Type: CmdRevert})
		reverted <- err
	}()
	require.Eventually(t, func() bool { return w.State().View(session.InputWaveform).Len() == 0 },
		time.Second, time.Millisecond)
	close(release)

	require.NoError(t, <-switched)
	require.NoError(t, <-reverted)
	f := w.Frame()
	assert.Equal(t, "Ready", f.Status)
	assert.Empty(t, f.Error)
	for _, role := range session.Roles {
		assert.False(t, f.Views[role].Empty, string(role))
	}
}

func TestPlaybackCommands(t *testing.T) {
	w, _ := newTestWorkbench(t)
	role := string(session.InputWaveform)

	exec(t, w, Command{Type: CmdSetRate, Role: role, Value: 2})
	exec(t, w, Command{Type: CmdMute, Role: role, Enabled: true})
	exec(t, w, Command{Type: CmdPlay, Role: role})

	select {
	case <-w.Positions():
	case <-time.After(2 * time.Second):
		t.Fatal("no position update")
	}
	assert.Equal(t, FramePlayback, w.PlaybackFrame().Type)

	exec(t, w, Command{Type: CmdPause, Role: role})
	exec(t, w, Command{Type: CmdStop, Role: role})
	assert.Equal(t, "0:00 / 0:01", w.PlaybackFrame().Clocks[session.InputWaveform])

	_, err := w.Execute(context.Background(), Command{Type: CmdPlay, Role: string(session.InputSpectrum)})
	assert.ErrorIs(t, err, ErrNoPlayback)
}

func TestFailedModeSwitchIsReported(t *testing.T) {
	w, backend := newTestWorkbench(t)
	backend.Fail[servicetest.CallSpectrogram] = errors.New("backend down")

	_, err := w.Execute(context.Background(), Command{Type: CmdSetMode, Mode: session.ModeMusical})
	require.Error(t, err)

	f := w.Frame()
	assert.Equal(t, session.ModeGeneric, f.Mode)
	assert.Equal(t, "Error", f.Status)
	assert.Contains(t, f.Error, "backend down")
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"set mode", `{"type":"setMode","mode":"musical"}`, CmdSetMode, false},
		{"apply", `{"type":"apply"}`, CmdApply, false},
		{"missing type", `{"mode":"musical"}`, "", true},
		{"negative index", `{"type":"removeBand","index":-1}`, "", true},
		{"inverted band", `{"type":"addBand","band":{"name":"x","low":500,"high":100,"value":1}}`, "", true},
		{"gain out of range", `{"type":"addBand","band":{"name":"x","low":1,"high":2,"value":3}}`, "", true},
		{"not json", `setMode`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Type)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	w, _ := newTestWorkbench(t)
	_, err := w.Execute(context.Background(), Command{Type: "shuffle"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestCommandAsync(t *testing.T) {
	assert.True(t, Command{Type: CmdApply}.Async())
	assert.True(t, Command{Type: CmdSetMode}.Async())
	assert.True(t, Command{Type: CmdRevert}.Async())
	assert.False(t, Command{Type: CmdZoomIn}.Async())
}
