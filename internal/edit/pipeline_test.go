// SPDX-License-Identifier: MIT
package edit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eqviewer/internal/mode"
	"eqviewer/internal/service"
	"eqviewer/internal/service/servicetest"
	"eqviewer/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInput = []float64{0.1, -0.1, 0.2, -0.2}

type fixture struct {
	state    *session.State
	backend  *servicetest.Backend
	ctrl     *mode.Controller
	pipeline *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc := &session.Document{
		OriginalSignal: "original.wav",
		Modes: map[string]*session.ModeEntry{
			session.ModeGeneric: {
				OutputSignal: "generic_out.wav",
				Sliders:      []session.Band{session.NewBand("Bass", 20, 250)},
			},
			session.ModeMusical: {
				OutputSignal: "musical_out.wav",
				Sliders:      []session.Band{session.NewBand("Guitar", 80, 1200)},
				AISliders:    []session.Band{session.NewBand("drums", 0, 0)},
			},
			session.ModeHumanVoices: {
				OutputSignal: "voices_out.wav",
				Sliders:      []session.Band{session.NewBand("Speaker 1", 85, 180)},
				AISliders:    []session.Band{session.NewBand("speaker_1", 0, 0)},
			},
			"animals": {
				OutputSignal: "animals_out.wav",
				Sliders:      []session.Band{session.NewBand("Dog", 450, 1100)},
			},
		},
	}

	f := &fixture{state: session.NewState(nil), backend: servicetest.New()}
	f.backend.Put("original.wav", testInput, 4)
	for _, ref := range []string{"generic_out.wav", "musical_out.wav", "voices_out.wav", "animals_out.wav"} {
		f.backend.Put(ref, testInput, 4)
	}
	require.NoError(t, f.state.Load(doc))

	f.ctrl = mode.NewController(f.state, f.backend, f.backend, f.backend)
	f.pipeline = NewPipeline(f.state, f.backend, f.backend, f.backend, f.backend)
	require.NoError(t, f.ctrl.SetMode(context.Background(), session.ModeGeneric))
	return f
}

func (f *fixture) switchTo(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, f.ctrl.SetMode(context.Background(), name))
}

func TestApplyGenericBass(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.SetBandValue(0, 1.5))

	res, err := f.pipeline.Apply(context.Background())
	require.NoError(t, err)
	assert.False(t, res.UsedAI)
	assert.Equal(t, 4, res.SampleRate, "falls back to the input rate")

	out := f.state.View(session.OutputWaveform).Data()
	assert.InDeltaSlice(t, []float64{0.15, -0.15, 0.3, -0.3}, out.Values, 1e-12)
	assert.Equal(t, 4, out.SampleRate)
	assert.Equal(t, res.OutputRef, out.Ref)
	assert.InDeltaSlice(t, []float64{0.15, 0.15, 0.3, 0.3}, f.state.View(session.OutputSpectrum).Data().Values, 1e-12)
	assert.Equal(t, 4, f.state.View(session.OutputSpectrogram).Len())

	entry, err := f.state.Entry(session.ModeGeneric)
	require.NoError(t, err)
	assert.Equal(t, res.OutputRef, entry.OutputSignal)

	assert.Equal(t, 1, f.backend.Count(servicetest.CallEqualize))
	assert.Equal(t, 0, f.backend.Count(servicetest.CallEnhance))
	assert.Equal(t, 1, f.backend.Count(servicetest.CallSave))
}

func TestApplyPathSelection(t *testing.T) {
	tests := []struct {
		mode   string
		toggle bool
		wantAI bool
	}{
		{session.ModeGeneric, false, false},
		{"animals", false, false},
		{session.ModeMusical, false, false},
		{session.ModeMusical, true, true},
		{session.ModeHumanVoices, false, false},
		{session.ModeHumanVoices, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			f := newFixture(t)
			f.switchTo(t, tt.mode)
			if tt.toggle {
				require.NoError(t, f.state.SetAIEnabled(tt.mode, true))
			}

			res, err := f.pipeline.Apply(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantAI, res.UsedAI)

			eq, ai := f.backend.Count(servicetest.CallEqualize), f.backend.Count(servicetest.CallEnhance)
			assert.Equal(t, 1, eq+ai, "exactly one remote edit call")
			if tt.wantAI {
				assert.Equal(t, 1, ai)
			} else {
				assert.Equal(t, 1, eq)
			}
		})
	}
}

func TestGenericIgnoresAIToggle(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.state.SetAIEnabled(session.ModeGeneric, true), session.ErrInvalidMode)

	_, err := f.pipeline.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, f.backend.Count(servicetest.CallEnhance))
}

func TestAIEditsUseAISliders(t *testing.T) {
	f := newFixture(t)
	f.switchTo(t, session.ModeMusical)
	require.NoError(t, f.state.SetAIEnabled(session.ModeMusical, true))
	require.NoError(t, f.state.SetBandValue(0, 0.5))

	var gotArg string
	f.backend.Hook = func(_ context.Context, call, arg string) error {
		if call == servicetest.CallEnhance {
			gotArg = arg
		}
		return nil
	}
	_, err := f.pipeline.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "drums=0.5", gotArg)

	entry, err := f.state.Entry(session.ModeMusical)
	require.NoError(t, err)
	assert.Equal(t, 0.5, entry.AISliders[0].Value)
	assert.Equal(t, 1.0, entry.Sliders[0].Value, "deterministic sliders are untouched")
}

func TestAISampleRateIsUsedWhenReported(t *testing.T) {
	f := newFixture(t)
	f.switchTo(t, session.ModeHumanVoices)
	require.NoError(t, f.state.SetAIEnabled(session.ModeHumanVoices, true))
	f.backend.EditRate = 44100

	res, err := f.pipeline.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 44100, res.SampleRate)
	assert.Equal(t, 44100, f.state.View(session.OutputWaveform).Data().SampleRate)
}

func TestLastSubmittedWins(t *testing.T) {
	f := newFixture(t)
	slowEntered := make(chan struct{})
	f.backend.Hook = func(_ context.Context, call, arg string) error {
		if call != servicetest.CallEqualize {
			return nil
		}
		if arg == "Bass=1.5" {
			close(slowEntered)
			time.Sleep(100 * time.Millisecond)
		} else {
			time.Sleep(10 * time.Millisecond)
		}
		return nil
	}

	require.NoError(t, f.state.SetBandValue(0, 1.5))
	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errA = f.pipeline.Apply(context.Background())
	}()
	<-slowEntered

	require.NoError(t, f.state.SetBandValue(0, 0.5))
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errB = f.pipeline.Apply(context.Background())
	}()
	wg.Wait()

	assert.ErrorIs(t, errA, ErrStale)
	assert.NoError(t, errB)
	assert.InDeltaSlice(t, []float64{0.05, -0.05, 0.1, -0.1},
		f.state.View(session.OutputWaveform).Data().Values, 1e-12)
	assert.Equal(t, 1, f.backend.Count(servicetest.CallSave))
}

func TestModeSwitchDiscardsInFlightEdit(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.Hook = func(_ context.Context, call, _ string) error {
		if call == servicetest.CallEqualize {
			close(entered)
			<-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Apply(context.Background())
		done <- err
	}()
	<-entered
	f.backend.Hook = nil
	f.switchTo(t, "animals")
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	entry, err := f.state.Entry(session.ModeGeneric)
	require.NoError(t, err)
	assert.Equal(t, "generic_out.wav", entry.OutputSignal)
}

func TestSlowSaveKeepsSessionResponsive(t *testing.T) {
	f := newFixture(t)
	saving := make(chan struct{})
	release := make(chan struct{})
	f.backend.Hook = func(_ context.Context, call, _ string) error {
		if call == servicetest.CallSave {
			close(saving)
			<-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Apply(context.Background())
		done <- err
	}()
	<-saving

	responsive := make(chan float64, 1)
	go func() {
		s := f.state.View(session.InputWaveform).ZoomIn()
		_ = f.state.Mode()
		_ = f.state.Bands()
		responsive <- s.Zoom
	}()
	select {
	case zoom := <-responsive:
		assert.Greater(t, zoom, 1.0)
	case <-time.After(time.Second):
		t.Fatal("view commands blocked while the output was being saved")
	}

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 4, f.state.View(session.OutputWaveform).Len())
}

func TestModeSwitchDuringSaveDiscardsEdit(t *testing.T) {
	f := newFixture(t)
	saving := make(chan struct{})
	release := make(chan struct{})
	f.backend.Hook = func(_ context.Context, call, _ string) error {
		if call == servicetest.CallSave {
			close(saving)
			<-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Apply(context.Background())
		done <- err
	}()
	<-saving
	f.switchTo(t, "animals")
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	entry, err := f.state.Entry(session.ModeGeneric)
	require.NoError(t, err)
	assert.Equal(t, "generic_out.wav", entry.OutputSignal)
}

func TestFailuresLeaveOutputUntouched(t *testing.T) {
	eqErr := &service.EqualizerError{Status: 400, Message: "Band 'Bass' has low > high"}
	tests := []struct {
		name string
		call string
		err  error
	}{
		{"equalizer", servicetest.CallEqualize, eqErr},
		{"spectrogram", servicetest.CallSpectrogram, errors.New("spectrogram down")},
		{"sink", servicetest.CallSave, errors.New("disk full")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			views := f.state.Views()
			before := map[session.Role]uint64{}
			for _, r := range session.OutputRoles {
				before[r] = views[r].Version()
			}
			f.backend.Fail[tt.call] = tt.err

			_, err := f.pipeline.Apply(context.Background())
			require.ErrorIs(t, err, tt.err)

			for _, r := range session.OutputRoles {
				assert.Equal(t, before[r], views[r].Version(), string(r))
			}
			entry, err := f.state.Entry(session.ModeGeneric)
			require.NoError(t, err)
			assert.Equal(t, "generic_out.wav", entry.OutputSignal)
		})
	}
}

func TestEqualizerMessageIsVerbatim(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail[servicetest.CallEqualize] = &service.EqualizerError{Status: 500, Message: "FFT size mismatch"}

	_, err := f.pipeline.Apply(context.Background())
	var eqErr *service.EqualizerError
	require.True(t, errors.As(err, &eqErr))
	assert.Equal(t, "FFT size mismatch", err.Error())
}

func TestApplyNotReady(t *testing.T) {
	p := NewPipeline(session.NewState(nil), nil, nil, nil, nil)
	_, err := p.Apply(context.Background())
	assert.ErrorIs(t, err, session.ErrNotReady)

	// Loaded document, but no mode has been fetched yet.
	st := session.NewState(nil)
	require.NoError(t, st.Load(&session.Document{Modes: map[string]*session.ModeEntry{
		session.ModeGeneric: {OutputSignal: "o.wav"},
	}}))
	backend := servicetest.New()
	p = NewPipeline(st, backend, backend, backend, backend)
	_, err = p.Apply(context.Background())
	assert.ErrorIs(t, err, session.ErrNotReady)
	assert.Equal(t, 0, backend.Count(servicetest.CallEqualize))
}
