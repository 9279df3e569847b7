// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"eqviewer/internal/config"
	"eqviewer/internal/player"
	"eqviewer/pkg/bitint"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// bufferSizes are the selectable PortAudio buffer sizes.
var bufferSizes = []int{128, 256, 512, 1024, 2048, 4096}

// DeviceLister enumerates playback devices.
type DeviceLister func() ([]player.Device, error)

// DeviceListModel lists output devices and builds a playback configuration
// for the chosen one.
type DeviceListModel struct {
	list          DeviceLister
	devices       []player.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	// Configuration options
	playback    config.PlaybackConfig
	bufferIndex int
	chosen      bool
}

type devicesMsg struct {
	devices []player.Device
}

type errMsg struct {
	err error
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	list := m.list
	return func() tea.Msg {
		devices, err := list()
		if err != nil {
			return errMsg{err}
		}
		outputs := devices[:0:0]
		for _, d := range devices {
			if d.IsOutput() {
				outputs = append(outputs, d)
			}
		}
		return devicesMsg{outputs}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		if m.activeScreen == ListScreen {
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				if len(m.devices) > 0 {
					m.activeScreen = ConfigScreen
					m.playback.Device = m.devices[m.selectedIndex].ID
					m.bufferIndex = bufferIndex(m.playback.FramesPerBuffer)
				}
			}
		} else {
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
				m.activeScreen = ListScreen

			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.bufferIndex > 0 {
					m.bufferIndex--
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.bufferIndex < len(bufferSizes)-1 {
					m.bufferIndex++
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				m.playback.Backend = "portaudio"
				m.playback.FramesPerBuffer = bufferSizes[m.bufferIndex]
				m.chosen = true
				return m, tea.Quit
			}
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\nPress q to exit."
	}

	var title, help string

	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Output Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Playback Configuration")
		help = infoStyle.Render("↑/↓: Buffer Size • Enter: Use • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No output devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, device.Kind())
		deviceInfo += fmt.Sprintf("    Output channels: %d, Default sample rate: %.0f Hz\n",
			device.MaxOutputChannels, device.DefaultSampleRate)
		deviceInfo += fmt.Sprintf("    Output latency: %.2fms - %.2fms\n",
			device.LowLatencyMs, device.HighLatencyMs)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderDeviceConfig formats the buffer size choice for the selected device.
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Configure Device: %s\n\n", device.Name)
	sb.WriteString("Frames per buffer:\n")

	for i, size := range bufferSizes {
		marker := " "
		if i == m.bufferIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %5d\n", marker, size)
		if device.DefaultSampleRate > 0 {
			ms := float64(size) / device.DefaultSampleRate * 1000
			line = fmt.Sprintf("  %s %5d (%.1fms)\n", marker, size, ms)
		}
		if i == m.bufferIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}

	return sb.String()
}

// Selection returns the playback configuration built on the config screen
// and whether the user confirmed it.
func (m DeviceListModel) Selection() (config.PlaybackConfig, bool) {
	return m.playback, m.chosen
}

// bufferIndex returns the position of size in bufferSizes, rounding up to a
// power of two.
func bufferIndex(size int) int {
	if !bitint.IsPowerOfTwo(size) {
		size = bitint.NextPowerOfTwo(size)
	}
	for i, s := range bufferSizes {
		if s >= size {
			return i
		}
	}
	return len(bufferSizes) - 1
}

// NewDeviceListModel creates a device list starting from base.
func NewDeviceListModel(list DeviceLister, base config.PlaybackConfig) DeviceListModel {
	return DeviceListModel{
		list:         list,
		playback:     base,
		activeScreen: ListScreen,
	}
}

// StartDeviceListUI runs the device picker and returns the chosen playback
// configuration. ok is false when the user quit without choosing.
func StartDeviceListUI(base config.PlaybackConfig) (pc config.PlaybackConfig, ok bool, err error) {
	p := tea.NewProgram(
		NewDeviceListModel(player.Devices, base),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return base, false, err
	}
	pc, ok = final.(DeviceListModel).Selection()
	return pc, ok, nil
}
