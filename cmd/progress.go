package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type progressModel struct {
	entities  []string
	statuses  map[string]Progress
	results   map[string]RunResult
	spinner   spinner.Model
	startTime time.Time
	width     int
	done      bool
	cancelled bool
	cancel    context.CancelFunc
}

type entityProgressMsg Progress

type exportDoneMsg struct {
	results []RunResult
}

var (
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Margin(0, 2)

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Margin(0, 2)

	tableHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFAA00")).
				Bold(true).
				Margin(0, 2)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Margin(0, 2)
)

func newProgressModel(entities []string, cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	statuses := make(map[string]Progress, len(entities))
	for _, name := range entities {
		statuses[name] = Progress{Entity: name, State: StateInit}
	}

	return progressModel{
		entities:  entities,
		statuses:  statuses,
		results:   make(map[string]RunResult, len(entities)),
		spinner:   s,
		startTime: time.Now(),
		cancel:    cancel,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case entityProgressMsg:
		m.statuses[msg.Entity] = Progress(msg)
	case exportDoneMsg:
		for _, r := range msg.results {
			m.results[r.Entity] = r
			m.statuses[r.Entity] = r.Progress
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// progressSender adapts a running program into a ProgressFunc
func progressSender(program *tea.Program) ProgressFunc {
	return func(p Progress) {
		program.Send(entityProgressMsg(p))
	}
}

func (m progressModel) renderEntity(name string) string {
	p := m.statuses[name]
	counters := fmt.Sprintf("%d rows, %d written, %d duplicates, %d flushes",
		p.RowsRead, p.Accepted, p.Duplicates, p.Flushes)

	switch p.State {
	case StateDone:
		return stageStyle.Render(fmt.Sprintf("   ✅ %-8s %s (%.2f MB)", name, counters, float64(p.BytesWritten)/(1024*1024)))
	case StateFailed:
		line := fmt.Sprintf("   ❌ %-8s %s", name, counters)
		if r, ok := m.results[name]; ok && r.Error != nil {
			line += " - " + r.Error.Error()
		}
		return failedStyle.Render(line)
	case StateInit:
		return helpStyle.Render(fmt.Sprintf("   ⏸  %-8s waiting", name))
	default:
		return stageStyle.Render(fmt.Sprintf("   %s %-8s %-9s %s", m.spinner.View(), name, p.State, counters))
	}
}

func (m progressModel) View() string {
	sections := []string{"", tableHeaderStyle.Render("   MusicBrainz Export"), ""}
	for _, name := range m.entities {
		sections = append(sections, m.renderEntity(name))
	}

	elapsed := time.Since(m.startTime).Truncate(time.Second)
	sections = append(sections, "", helpStyle.Render(fmt.Sprintf("   Elapsed: %s", elapsed)))

	switch {
	case m.done:
	case m.cancelled:
		sections = append(sections, failedStyle.Render("   Cancelling..."))
	default:
		sections = append(sections, helpStyle.Render("   Press Ctrl+C or 'q' to cancel"))
	}

	return strings.Join(sections, "\n")
}
