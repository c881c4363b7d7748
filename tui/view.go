package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/forgedev/forge-orch/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))
)

var tabNames = []string{"Runs", "Checkpoints", "Events"}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	active, failed := 0, 0
	for _, r := range m.runs {
		switch r.Status {
		case domain.RunActive:
			active++
		case domain.RunFailed:
			failed++
		}
	}
	header := fmt.Sprintf(" Forge Orchestrator │ Runs: %d │ Active: %d │ Failed: %d ",
		len(m.runs), active, failed)
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	var section string
	switch m.activeTab {
	case 0:
		section = m.renderRuns()
	case 1:
		section = m.renderCheckpoints()
	case 2:
		section = m.renderFeed()
	}
	b.WriteString(sectionStyle.Width(m.width - 2).Render(section))
	b.WriteString("\n")

	if m.statusMsg != "" {
		b.WriteString(failedStyle.Width(m.width).Render(" " + m.statusMsg + " "))
		b.WriteString("\n")
	}

	statusBar := " [tab]switch [j/k]move [enter]checkpoints [r]efresh [q]uit "
	b.WriteString(statusBarStyle.Width(m.width).Render(statusBar))

	return b.String()
}

func (m Model) renderTabs() string {
	parts := make([]string, len(tabNames))
	for i, name := range tabNames {
		if i == m.activeTab {
			parts[i] = tabActiveStyle.Render(name)
		} else {
			parts[i] = tabInactiveStyle.Render(name)
		}
	}
	return " " + strings.Join(parts, " │ ")
}

func (m Model) renderRuns() string {
	if len(m.runs) == 0 {
		return "No runs yet"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-10s %-12s %-14s %-10s %s\n", "STATUS", "PHASE", "STARTED", "ID", "GOAL"))
	for i, run := range m.runs {
		line := fmt.Sprintf("%-10s %-12s %-14s %-10s %s",
			run.Status, run.CurrentPhase, startedAgo(run), shortID(run.ID), truncateGoal(run.Goal, m.width-52))
		if i == m.selectedRow {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + statusStyle(run.Status).Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderCheckpoints() string {
	if len(m.checkpoints) == 0 {
		return "No checkpoints loaded. Select a run and press enter."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-5s %-28s %-14s %s\n", "SEQ", "LABEL", "WHEN", "STATE"))
	visible := m.visibleRows()
	checks := m.checkpoints
	if m.scroll < len(checks) {
		checks = checks[m.scroll:]
	}
	if len(checks) > visible {
		checks = checks[:visible]
	}
	for _, c := range checks {
		b.WriteString(fmt.Sprintf("%-5d %-28s %-14s %s\n",
			c.Seq, c.Label, humanize.Time(c.CreatedAt), summarizeState(c.State)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderFeed() string {
	if len(m.feed) == 0 {
		return "No events yet"
	}

	var b strings.Builder
	feed := m.feed
	visible := m.visibleRows()
	if len(feed) > visible {
		feed = feed[len(feed)-visible:]
	}
	for _, e := range feed {
		line := fmt.Sprintf("%s %-14s %-12s attempt %d %s",
			e.At.Format("15:04:05"), e.Status, e.Phase, e.Attempt, e.Details)
		switch e.Status {
		case "phase_failed", "run_failed":
			line = failedStyle.Render(line)
		case "run_completed":
			line = completedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) visibleRows() int {
	rows := m.height - 8
	if rows < 5 {
		rows = 5
	}
	return rows
}

func statusStyle(s domain.RunStatus) lipgloss.Style {
	switch s {
	case domain.RunActive:
		return activeStyle
	case domain.RunCompleted:
		return completedStyle
	case domain.RunFailed:
		return failedStyle
	default:
		return pendingStyle
	}
}

func startedAgo(run *domain.Run) string {
	if run.StartedAt == nil {
		return "-"
	}
	return humanize.Time(*run.StartedAt)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateGoal(goal string, max int) string {
	goal = strings.ReplaceAll(goal, "\n", " ")
	if max < 10 {
		max = 10
	}
	if len(goal) > max {
		return goal[:max-1] + "…"
	}
	return goal
}

func summarizeState(state map[string]string) string {
	if len(state) == 0 {
		return ""
	}
	parts := make([]string, 0, len(state))
	for k, v := range state {
		if len(v) > 20 {
			v = v[:20] + "…"
		}
		parts = append(parts, k+"="+v)
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.Join(parts, " ")
}
