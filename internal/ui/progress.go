// Package ui renders a terminal progress view while libraries load.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"arendls/internal/engine"
	"arendls/internal/source"
)

// Event is one progress update: a module status change, or a phase label
// when Module is empty.
type Event struct {
	Library string
	Module  string
	Status  engine.ModuleStatus
	Phase   string
}

// Events is a channel of progress updates that can be handed to the engine
// as its load listener.
type Events chan Event

// ModuleStatus implements engine.LoadListener.
func (ch Events) ModuleStatus(lib string, path source.ModulePath, st engine.ModuleStatus) {
	ch <- Event{Library: lib, Module: path.String(), Status: st}
}

// Phase announces the current phase, such as "typechecking lib".
func (ch Events) Phase(label string) {
	ch <- Event{Phase: label}
}

type progressModel struct {
	title   string
	events  <-chan Event
	spinner spinner.Model
	prog    progress.Model
	items   []moduleItem
	index   map[string]int
	phase   string
	width   int
	done    bool
}

type moduleItem struct {
	name   string
	status engine.ModuleStatus
}

type eventMsg Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model listing every module reported
// on events. It quits when events is closed.
func NewProgressModel(title string, events <-chan Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		index:   make(map[string]int),
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.apply(Event(msg))
		return m, tea.Batch(cmd, m.listen())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.phase != "" {
		header = fmt.Sprintf("%s (%s)", header, m.phase)
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-16, 20)
	for _, item := range m.items {
		label := item.status.String()
		fmt.Fprintf(&b, "  %s %s\n", styleStatus(item.status).Render(fmt.Sprintf("%9s", label)), truncate(item.name, nameWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) apply(ev Event) tea.Cmd {
	if ev.Module == "" {
		if ev.Phase != "" {
			m.phase = ev.Phase
		}
		return nil
	}
	key := ev.Library + ":" + ev.Module
	idx, ok := m.index[key]
	if !ok {
		idx = len(m.items)
		m.index[key] = idx
		m.items = append(m.items, moduleItem{name: key})
	}
	m.items[idx].status = ev.Status
	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		total += weight(item.status)
	}
	return total / float64(len(m.items))
}

func weight(st engine.ModuleStatus) float64 {
	switch st {
	case engine.ModuleParsed, engine.ModuleFailed:
		return 1
	case engine.ModuleParsing:
		return 0.5
	default:
		return 0
	}
}

func styleStatus(st engine.ModuleStatus) lipgloss.Style {
	switch st {
	case engine.ModuleParsed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case engine.ModuleFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case engine.ModuleParsing:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
