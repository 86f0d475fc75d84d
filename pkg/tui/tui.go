// Package tui is an interactive dashboard over the result store: the latest
// run's summary plus its unsuccessful jobs.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/utils"
)

const visibleJobs = 15

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
	cursorStyle = lipgloss.NewStyle().Bold(true)
)

type dashboardModel struct {
	store store.ResultStore

	summary *store.RunSummary
	failed  []store.Job
	loadErr error

	cursor int
	offset int
}

type refreshedMsg struct {
	summary *store.RunSummary
	failed  []store.Job
	err     error
}

func newDashboard(st store.ResultStore) dashboardModel {
	return dashboardModel{store: st}
}

func (m dashboardModel) Init() tea.Cmd {
	return m.refresh
}

func (m dashboardModel) refresh() tea.Msg {
	summary, err := m.store.LatestRunSummary()
	if err != nil {
		return refreshedMsg{err: err}
	}
	if summary == nil {
		return refreshedMsg{}
	}

	failed, err := m.store.FailedJobs(summary.RunID)
	if err != nil {
		return refreshedMsg{err: err}
	}

	return refreshedMsg{summary: summary, failed: failed}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshedMsg:
		m.summary = msg.summary
		m.failed = msg.failed
		m.loadErr = msg.err
		if m.cursor >= len(m.failed) {
			m.cursor = 0
			m.offset = 0
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.refresh
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.failed)-1 {
				m.cursor++
				if m.cursor >= m.offset+visibleJobs {
					m.offset = m.cursor - visibleJobs + 1
				}
			}
		}
	}

	return m, nil
}

func (m dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Validation Dashboard"))
	b.WriteString("\n\n")

	switch {
	case m.loadErr != nil:
		b.WriteString(failStyle.Render(fmt.Sprintf("error: %v", m.loadErr)))
		b.WriteString("\n")
	case m.summary == nil:
		b.WriteString(labelStyle.Render("no validation runs recorded yet"))
		b.WriteString("\n")
	default:
		b.WriteString(m.summaryView())
		b.WriteString("\n")
		b.WriteString(m.failedView())
	}

	b.WriteString(helpStyle.Render("r refresh · j/k move · q quit"))
	b.WriteString("\n")

	return b.String()
}

func (m dashboardModel) summaryView() string {
	s := m.summary

	statusStyle := okStyle
	if s.Status != store.RunCompleted {
		statusStyle = failStyle
	}

	lines := []string{
		fmt.Sprintf("%s %d", labelStyle.Render("run"), s.RunID),
		fmt.Sprintf("%s %s", labelStyle.Render("started"), s.Timestamp.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("%s %.8s", labelStyle.Render("commit"), s.GitCommit),
		fmt.Sprintf("%s %s", labelStyle.Render("status"), statusStyle.Render(s.Status)),
		fmt.Sprintf("%s %s / %s / %d total",
			labelStyle.Render("jobs"),
			okStyle.Render(fmt.Sprintf("%d ok", s.SuccessfulJobs)),
			failStyle.Render(fmt.Sprintf("%d failed", s.FailedJobs)),
			s.TotalJobs),
	}

	return strings.Join(lines, "\n") + "\n"
}

func (m dashboardModel) failedView() string {
	if len(m.failed) == 0 {
		return okStyle.Render("all jobs succeeded") + "\n"
	}

	var b strings.Builder
	b.WriteString(warnStyle.Render(fmt.Sprintf("%d unsuccessful job(s)", len(m.failed))))
	b.WriteString("\n")

	end := m.offset + visibleJobs
	if end > len(m.failed) {
		end = len(m.failed)
	}

	for i := m.offset; i < end; i++ {
		job := m.failed[i]
		line := fmt.Sprintf("  %s  %-20s %s  %s",
			job.Country, job.Scenario, job.JobStatus,
			utils.TimeOrZero(job.SubmittedAt).Format("15:04:05"))
		if i == m.cursor {
			line = cursorStyle.Render("> " + strings.TrimPrefix(line, "  "))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if end < len(m.failed) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  … %d more", len(m.failed)-end)))
		b.WriteString("\n")
	}

	return b.String()
}

// Run starts the dashboard and blocks until the user quits.
func Run(st store.ResultStore) error {
	_, err := tea.NewProgram(newDashboard(st)).Run()
	return err
}
