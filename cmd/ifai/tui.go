package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/dispatch"
	"github.com/hupe1980/ifai/fileio"
)

// viewMsg carries a dispatcher snapshot into the bubbletea loop.
type viewMsg dispatch.View

// exitMsg ends the program after the dispatcher shut the engine down.
type exitMsg struct{}

// submitter is the part of the dispatcher the UI drives.
type submitter interface {
	Submit(text string) (bool, error)
	Shutdown()
}

type styles struct {
	header   lipgloss.Style
	player   lipgloss.Style
	narrator lipgloss.Style
	system   lipgloss.Style
	debug    lipgloss.Style
	status   lipgloss.Style
	errText  lipgloss.Style
	input    lipgloss.Style
}

func defaultStyles() styles {
	amber := lipgloss.Color("#ffb000")
	muted := lipgloss.Color("#8a8a8a")
	return styles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(amber).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(muted),
		player:   lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd7ff")).Bold(true),
		narrator: lipgloss.NewStyle(),
		system:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		debug:    lipgloss.NewStyle().Foreground(muted),
		status:   lipgloss.NewStyle().Foreground(amber),
		errText:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true),
		input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
	}
}

type model struct {
	dispatcher submitter
	fio        fileio.FileIO
	styles     styles

	input textinput.Model
	story viewport.Model

	view      dispatch.View
	status    string
	failed    bool
	showDebug bool
	width     int
	height    int
}

func newModel(d submitter, fio fileio.FileIO) model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "What do you do? (:save <file>, clear, new, quit)"
	input.CharLimit = 2000
	input.Focus()

	return model{
		dispatcher: d,
		fio:        fio,
		styles:     defaultStyles(),
		input:      input,
		story:      viewport.New(80, 20),
		status:     "ctrl+d toggles debug output · esc quits",
	}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case viewMsg:
		m.view = dispatch.View(msg)
		m.render()
	case exitMsg:
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.render()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, shutdown(m.dispatcher)
		case "ctrl+d":
			m.showDebug = !m.showDebug
			m.resize()
			m.render()
			return m, nil
		case "enter":
			text := m.input.Value()
			m.input.Reset()
			m.handleLine(text)
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.story, cmd = m.story.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// shutdown stops the game off the event loop. The dispatcher's exit callback
// sends to the program, which would block if it ran inside Update.
func shutdown(d submitter) tea.Cmd {
	return func() tea.Msg {
		d.Shutdown()
		return exitMsg{}
	}
}

// handleLine runs local commands or forwards the line to the engine.
func (m *model) handleLine(text string) {
	if name, overwrite, ok := parseSave(text); ok {
		m.save(name, overwrite)
		return
	}
	sent, err := m.dispatcher.Submit(text)
	switch {
	case err != nil:
		m.setStatus(fmt.Sprintf("could not send: %v", err), true)
	case sent:
		m.setStatus("the narrator is thinking...", false)
	}
}

func (m *model) save(filename string, overwrite bool) {
	if filename == "" {
		m.setStatus("usage: :save <file> or :save! <file>", true)
		return
	}
	res := fileio.Save(m.fio, filename, overwrite, newTranscript(m.view))
	_, ok := res.(fileio.Success)
	if _, exists := res.(fileio.AlreadyExists); exists {
		m.setStatus(res.String()+"; use :save! to overwrite", true)
		return
	}
	m.setStatus(res.String(), !ok)
}

func (m *model) setStatus(text string, failed bool) {
	m.status = text
	m.failed = failed
}

// parseSave recognises ":save <file>" and ":save! <file>".
func parseSave(line string) (filename string, overwrite, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false, false
	}
	switch fields[0] {
	case ":save":
	case ":save!":
		overwrite = true
	default:
		return "", false, false
	}
	return strings.Join(fields[1:], " "), overwrite, true
}

// transcript is the saved form of a play session.
type transcript struct {
	State   core.GameState        `json:"state"`
	History []core.NewHistoryItem `json:"history"`
}

func newTranscript(v dispatch.View) transcript {
	return transcript{State: v.State, History: v.History}
}

const debugLines = 4

func (m *model) resize() {
	if m.width == 0 {
		return
	}
	m.input.Width = m.width - 6
	reserved := 5 // header, input box, status
	if m.showDebug {
		reserved += debugLines
	}
	m.story.Width = m.width
	m.story.Height = max(m.height-reserved, 3)
}

func (m *model) render() {
	m.story.SetContent(renderHistory(m.view.History, m.styles, m.story.Width))
	m.story.GotoBottom()
	if m.view.State.Turn > 0 && !m.failed {
		m.status = fmt.Sprintf("turn %d", m.view.State.Turn)
	}
}

func renderHistory(items []core.NewHistoryItem, st styles, width int) string {
	wrap := lipgloss.NewStyle()
	if width > 0 {
		wrap = wrap.Width(width)
	}
	var b strings.Builder
	for _, it := range items {
		var line string
		switch it.Source {
		case core.SourcePlayer:
			line = st.player.Render("> " + it.Text)
		case core.SourceSystem:
			line = st.system.Render(it.Text)
		default:
			line = st.narrator.Render(it.Text)
		}
		b.WriteString(wrap.Render(line))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m model) View() string {
	room := m.view.State.RoomID
	if room == "" {
		room = "somewhere"
	}
	header := m.styles.header.Render(fmt.Sprintf("ifai · %s · turn %d", room, m.view.State.Turn))

	parts := []string{header, m.story.View()}
	if m.showDebug {
		parts = append(parts, m.renderDebug())
	}
	parts = append(parts, m.styles.input.Render(m.input.View()))

	status := m.styles.status.Render(m.status)
	if m.failed {
		status = m.styles.errText.Render(m.status)
	}
	parts = append(parts, status)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m model) renderDebug() string {
	lines := m.view.Debug
	if len(lines) > debugLines {
		lines = lines[len(lines)-debugLines:]
	}
	out := make([]string, debugLines)
	copy(out, lines)
	return m.styles.debug.Render(strings.Join(out, "\n"))
}
