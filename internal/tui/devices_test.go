// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"testing"

	"eqviewer/internal/config"
	"eqviewer/internal/player"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeDevices() ([]player.Device, error) {
	return []player.Device{
		{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000},
		{ID: 1, Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{ID: 2, Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 44100},
	}, nil
}

func update(t *testing.T, m DeviceListModel, msg tea.Msg) (DeviceListModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	dm, ok := next.(DeviceListModel)
	require.True(t, ok)
	return dm, cmd
}

func TestDeviceListSelectsPlaybackConfig(t *testing.T) {
	m := NewDeviceListModel(fakeDevices, config.Default().Playback)

	msg := m.Init()()
	devices, ok := msg.(devicesMsg)
	require.True(t, ok)
	require.Len(t, devices.devices, 2, "input-only devices are hidden")

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = update(t, m, msg)
	assert.Contains(t, m.View(), "Built-in Output")
	assert.NotContains(t, m.View(), "Microphone")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.selectedIndex)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ConfigScreen, m.activeScreen)
	assert.Equal(t, 1024, bufferSizes[m.bufferIndex])
	assert.Contains(t, m.View(), "USB Interface")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	pc, chosen := m.Selection()
	require.True(t, chosen)
	assert.Equal(t, 2, pc.Device)
	assert.Equal(t, 512, pc.FramesPerBuffer)
	assert.Equal(t, "portaudio", pc.Backend)
	assert.Equal(t, config.DefaultUpdateInterval, pc.UpdateInterval)
}

func TestDeviceListEscReturnsToList(t *testing.T) {
	m := NewDeviceListModel(fakeDevices, config.Default().Playback)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = update(t, m, m.Init()())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ListScreen, m.activeScreen)

	_, chosen := m.Selection()
	assert.False(t, chosen)
}

func TestDeviceListError(t *testing.T) {
	m := NewDeviceListModel(func() ([]player.Device, error) {
		return nil, errors.New("portaudio not initialized")
	}, config.Default().Playback)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = update(t, m, m.Init()())
	assert.Contains(t, m.View(), "portaudio not initialized")
}

func TestBufferIndex(t *testing.T) {
	assert.Equal(t, 0, bufferIndex(1))
	assert.Equal(t, 3, bufferIndex(1024))
	assert.Equal(t, 3, bufferIndex(1000))
	assert.Equal(t, len(bufferSizes)-1, bufferIndex(8192))
}
