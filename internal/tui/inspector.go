// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"eqviewer/internal/series"
	"eqviewer/internal/session"
	"eqviewer/internal/workbench"
	"eqviewer/pkg/utils"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	gainStep = 0.1
	panStep  = 0.25
)

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
	focusStyle = highlightStyle.Underline(true)
)

// Session is the workbench surface the inspector drives.
type Session interface {
	Execute(ctx context.Context, cmd workbench.Command) (workbench.Reply, error)
	Frame() workbench.Frame
	PlaybackFrame() workbench.Frame
	Positions() <-chan struct{}
	Subscribe(fn session.Listener) func()
}

var _ Session = (*workbench.Workbench)(nil)

type keyMap struct {
	Quit      key.Binding
	NextView  key.Binding
	PrevView  key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	PanLeft   key.Binding
	PanRight  key.Binding
	ResetView key.Binding
	NextMode  key.Binding
	PrevBand  key.Binding
	NextBand  key.Binding
	GainUp    key.Binding
	GainDown  key.Binding
	Remove    key.Binding
	Apply     key.Binding
	ToggleAI  key.Binding
	Play      key.Binding
	Stop      key.Binding
	Revert    key.Binding
	Help      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		NextView:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
		PrevView:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev view")),
		ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
		PanLeft:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "pan left")),
		PanRight:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "pan right")),
		ResetView: key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "reset view")),
		NextMode:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "next mode")),
		PrevBand:  key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev band")),
		NextBand:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next band")),
		GainUp:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "gain +")),
		GainDown:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "gain -")),
		Remove:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove band")),
		Apply:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "apply")),
		ToggleAI:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "toggle AI")),
		Play:      key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		Stop:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Revert:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "revert")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextView, k.ZoomIn, k.ZoomOut, k.NextMode, k.Apply, k.Play, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextView, k.PrevView, k.ZoomIn, k.ZoomOut, k.PanLeft, k.PanRight, k.ResetView},
		{k.NextMode, k.PrevBand, k.NextBand, k.GainUp, k.GainDown, k.Remove},
		{k.Apply, k.ToggleAI, k.Revert, k.Play, k.Stop, k.Help, k.Quit},
	}
}

type (
	eventMsg    struct{}
	positionMsg struct{}
	resultMsg   struct {
		cmd workbench.Command
		err error
	}
)

// InspectorModel renders every view of a session and maps keys to
// workbench commands.
type InspectorModel struct {
	ctx      context.Context
	sess     Session
	events   chan struct{}
	unsub    func()
	keys     keyMap
	help     help.Model
	viewport viewport.Model
	ready    bool

	frame   workbench.Frame
	focus   int
	band    int
	pending int
	notice  string
	failed  bool
}

// NewInspector creates an inspector over sess. Commands run with ctx.
func NewInspector(ctx context.Context, sess Session) *InspectorModel {
	m := &InspectorModel{
		ctx:    ctx,
		sess:   sess,
		events: make(chan struct{}, 1),
		keys:   defaultKeys(),
		help:   help.New(),
	}
	m.unsub = sess.Subscribe(func(session.Event) {
		select {
		case m.events <- struct{}{}:
		default:
		}
	})
	m.frame = sess.Frame()
	return m
}

// Close detaches the inspector from session events.
func (m *InspectorModel) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

func (m *InspectorModel) waitEvent() tea.Msg {
	<-m.events
	return eventMsg{}
}

func (m *InspectorModel) waitPosition() tea.Msg {
	<-m.sess.Positions()
	return positionMsg{}
}

// Init starts listening for session events and playback positions.
func (m *InspectorModel) Init() tea.Cmd {
	return tea.Batch(m.waitEvent, m.waitPosition)
}

func (m *InspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.KeyMap = viewport.KeyMap{
				PageDown: key.NewBinding(key.WithKeys("pgdown")),
				PageUp:   key.NewBinding(key.WithKeys("pgup")),
			}
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.help.Width = msg.Width

	case eventMsg:
		m.frame = m.sess.Frame()
		m.clampBand()
		cmds = append(cmds, m.waitEvent)

	case positionMsg:
		pf := m.sess.PlaybackFrame()
		views := maps.Clone(m.frame.Views)
		if views == nil {
			views = make(map[session.Role]series.Slice, len(pf.Views))
		}
		maps.Copy(views, pf.Views)
		m.frame.Views = views
		m.frame.Clocks = pf.Clocks
		m.frame.Playing = pf.Playing
		cmds = append(cmds, m.waitPosition)

	case resultMsg:
		m.pending--
		m.report(msg.cmd, msg.err)
		m.frame = m.sess.Frame()
		m.clampBand()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.Close()
			return m, tea.Quit
		}
		if key.Matches(msg, m.keys.Help) {
			m.help.ShowAll = !m.help.ShowAll
			break
		}
		if cmd, ok := m.command(msg); ok {
			cmds = append(cmds, m.run(cmd))
		}
	}

	if m.ready {
		m.viewport.SetContent(m.renderBody())
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// command maps a key press to a workbench command.
func (m *InspectorModel) command(msg tea.KeyMsg) (workbench.Command, bool) {
	role := string(m.focused())
	switch {
	case key.Matches(msg, m.keys.NextView):
		m.focus = (m.focus + 1) % len(session.Roles)
	case key.Matches(msg, m.keys.PrevView):
		m.focus = (m.focus + len(session.Roles) - 1) % len(session.Roles)
	case key.Matches(msg, m.keys.PrevBand):
		m.band = max(m.band-1, 0)
	case key.Matches(msg, m.keys.NextBand):
		m.band = min(m.band+1, max(len(m.frame.Bands)-1, 0))

	case key.Matches(msg, m.keys.ZoomIn):
		return workbench.Command{Type: workbench.CmdZoomIn, Role: role}, true
	case key.Matches(msg, m.keys.ZoomOut):
		return workbench.Command{Type: workbench.CmdZoomOut, Role: role}, true
	case key.Matches(msg, m.keys.PanLeft), key.Matches(msg, m.keys.PanRight):
		s := m.frame.Views[m.focused()]
		step := panStep / max(s.Zoom, 1)
		if key.Matches(msg, m.keys.PanLeft) {
			step = -step
		}
		return workbench.Command{Type: workbench.CmdPan, Role: role, Offset: s.Offset + step}, true
	case key.Matches(msg, m.keys.ResetView):
		return workbench.Command{Type: workbench.CmdResetView, Role: role}, true

	case key.Matches(msg, m.keys.NextMode):
		if next := m.nextMode(); next != "" {
			return workbench.Command{Type: workbench.CmdSetMode, Mode: next}, true
		}
	case key.Matches(msg, m.keys.GainUp), key.Matches(msg, m.keys.GainDown):
		if m.band >= len(m.frame.Bands) {
			return workbench.Command{}, false
		}
		delta := gainStep
		if key.Matches(msg, m.keys.GainDown) {
			delta = -gainStep
		}
		value := min(max(m.frame.Bands[m.band].Value+delta, session.MinGain), session.MaxGain)
		return workbench.Command{Type: workbench.CmdSetBand, Index: m.band, Value: value}, true
	case key.Matches(msg, m.keys.Remove):
		if m.band < len(m.frame.Bands) {
			return workbench.Command{Type: workbench.CmdRemoveBand, Index: m.band}, true
		}
	case key.Matches(msg, m.keys.Apply):
		return workbench.Command{Type: workbench.CmdApply}, true
	case key.Matches(msg, m.keys.ToggleAI):
		return workbench.Command{Type: workbench.CmdToggleAI, Enabled: !m.aiEnabled()}, true
	case key.Matches(msg, m.keys.Revert):
		return workbench.Command{Type: workbench.CmdRevert}, true

	case key.Matches(msg, m.keys.Play), key.Matches(msg, m.keys.Stop):
		wave := m.waveformRole()
		if key.Matches(msg, m.keys.Stop) {
			return workbench.Command{Type: workbench.CmdStop, Role: string(wave)}, true
		}
		if m.frame.Playing[wave] {
			return workbench.Command{Type: workbench.CmdPause, Role: string(wave)}, true
		}
		return workbench.Command{Type: workbench.CmdPlay, Role: string(wave)}, true
	}
	return workbench.Command{}, false
}

// run executes local commands inline and remote ones as a tea.Cmd.
func (m *InspectorModel) run(cmd workbench.Command) tea.Cmd {
	if !cmd.Async() {
		_, err := m.sess.Execute(m.ctx, cmd)
		m.report(cmd, err)
		m.frame = m.sess.Frame()
		m.clampBand()
		return nil
	}
	m.pending++
	m.notice = fmt.Sprintf("%s...", cmd.Type)
	m.failed = false
	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		_, err := sess.Execute(ctx, cmd)
		return resultMsg{cmd: cmd, err: err}
	}
}

func (m *InspectorModel) report(cmd workbench.Command, err error) {
	if err != nil {
		m.notice = fmt.Sprintf("%s failed: %v", cmd.Type, err)
		m.failed = true
		return
	}
	m.failed = false
	if cmd.Async() {
		m.notice = fmt.Sprintf("%s done", cmd.Type)
	}
}

func (m *InspectorModel) focused() session.Role {
	return session.Roles[m.focus]
}

// waveformRole returns the waveform matching the focused view's side.
func (m *InspectorModel) waveformRole() session.Role {
	if m.focused().IsOutput() {
		return session.OutputWaveform
	}
	return session.InputWaveform
}

func (m *InspectorModel) nextMode() string {
	modes := m.frame.Modes
	cur := -1
	for i, info := range modes {
		if info.Name == m.frame.Mode {
			cur = i
		}
	}
	for step := 1; step <= len(modes); step++ {
		info := modes[(cur+step+len(modes))%len(modes)]
		if info.Displayable && info.Name != m.frame.Mode {
			return info.Name
		}
	}
	return ""
}

func (m *InspectorModel) aiEnabled() bool {
	for _, info := range m.frame.Modes {
		if info.Name == m.frame.Mode {
			return info.AIEnabled
		}
	}
	return false
}

func (m *InspectorModel) clampBand() {
	m.band = min(m.band, max(len(m.frame.Bands)-1, 0))
}

// View renders the UI
func (m *InspectorModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s", m.renderHeader(), m.viewport.View(), m.renderNotice(), m.help.View(m.keys))
}

func (m *InspectorModel) renderHeader() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("EQ Viewer"))
	sb.WriteString(" ")
	for _, info := range m.frame.Modes {
		name := info.Name
		switch {
		case info.Name == m.frame.Mode:
			name = highlightStyle.Render("[" + name + "]")
		case !info.Displayable:
			name = dimStyle.Render(name)
		}
		sb.WriteString(" " + name)
	}
	status := m.frame.Status
	if m.pending > 0 {
		status += "*"
	}
	fmt.Fprintf(&sb, "  %s  gen %d", infoStyle.Render(status), m.frame.Generation)
	if m.frame.UsesAI {
		sb.WriteString("  " + highlightStyle.Render("AI"))
	}
	return sb.String()
}

func (m *InspectorModel) renderNotice() string {
	switch {
	case m.frame.Error != "":
		return errorStyle.Render(m.frame.Error)
	case m.failed:
		return errorStyle.Render(m.notice)
	default:
		return dimStyle.Render(m.notice)
	}
}

func (m *InspectorModel) renderBody() string {
	width := max(m.viewport.Width-2, 8)
	var sb strings.Builder
	for i, role := range session.Roles {
		s := m.frame.Views[role]
		label := string(role)
		if i == m.focus {
			label = focusStyle.Render("▶ " + label)
		} else {
			label = infoStyle.Render("  " + label)
		}
		fmt.Fprintf(&sb, "%s  %s\n", label, dimStyle.Render(describe(s, m.frame.Clocks[role])))
		sb.WriteString(Render(s, width, rowsFor(role)))
		sb.WriteString("\n\n")
	}
	sb.WriteString(m.renderBands())
	return sb.String()
}

func rowsFor(role session.Role) int {
	switch role.Variant() {
	case series.Spectrum:
		return 4
	case series.Spectrogram:
		return 6
	default:
		return 5
	}
}

// describe summarizes a slice's window and, for spectra, its peak.
func describe(s series.Slice, clock string) string {
	if s.Empty {
		return ""
	}
	parts := []string{fmt.Sprintf("zoom %.2fx", s.Zoom), fmt.Sprintf("offset %.2f", s.Offset)}
	if s.Step > 1 {
		parts = append(parts, fmt.Sprintf("step %d", s.Step))
	}
	if s.Variant == series.Spectrum && len(s.Y) > 0 && len(s.X) == len(s.Y) {
		peak := utils.FindPeakBin(s.Y, 0, len(s.Y)-1)
		parts = append(parts, fmt.Sprintf("peak %.0f Hz", s.X[peak]))
	}
	if clock != "" {
		parts = append(parts, clock)
	}
	return strings.Join(parts, "  ")
}

func (m *InspectorModel) renderBands() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Bands"))
	sb.WriteString("\n")
	if len(m.frame.Bands) == 0 {
		sb.WriteString(dimStyle.Render("  none"))
		return sb.String()
	}
	for i, b := range m.frame.Bands {
		meter := strings.Repeat("█", int(b.Value*10))
		line := fmt.Sprintf("  %-12s %7.0f-%-7.0f Hz  %.2f %s", b.Name, b.Low, b.High, b.Value, meter)
		if i == m.band {
			line = highlightStyle.Render("▶" + line[1:])
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// StartInspectorUI runs the inspector until the user quits or ctx is done.
func StartInspectorUI(ctx context.Context, sess Session) error {
	m := NewInspector(ctx, sess)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
