// Package tui renders live scan progress in the terminal while a grid
// search runs.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gavinathaya/KleoProj/internal/search"
)

const barWidth = 40

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// doneMsg signals the scan goroutine has finished.
type doneMsg struct{}

type progressModel struct {
	updates  <-chan search.Progress
	latest   search.Progress
	finished bool
}

// NewProgress builds a bubbletea model that drains updates until the
// channel closes. The caller runs the scan in its own goroutine, feeds
// the channel from the search progress callback, and closes it when the
// scan returns.
func NewProgress(updates <-chan search.Progress) tea.Model {
	return progressModel{updates: updates}
}

func (m progressModel) Init() tea.Cmd {
	return m.wait()
}

func (m progressModel) wait() tea.Cmd {
	return func() tea.Msg {
		p, ok := <-m.updates
		if !ok {
			return doneMsg{}
		}
		return p
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case search.Progress:
		m.latest = msg
		return m, m.wait()
	case doneMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	p := m.latest
	if p.Total == 0 {
		return dim.Render("seeding grid...") + "\n"
	}

	filled := p.Done * barWidth / p.Total
	bar := green.Render(strings.Repeat("━", filled)) +
		dim.Render(strings.Repeat("╌", barWidth-filled))

	line := fmt.Sprintf("%s ╢%s╟ %s",
		cyan.Render(fmt.Sprintf("%d/%d", p.Done, p.Total)),
		bar,
		yellow.Render(fmt.Sprintf("%d converged", p.Converged)),
	)
	if m.finished {
		return line + "\n"
	}
	return line + dim.Render("  (q to abort)") + "\n"
}
