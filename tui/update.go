package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/forgedev/forge-orch/internal/events"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		case "j", "down":
			if m.activeTab == 0 {
				if m.selectedRow < len(m.runs)-1 {
					m.selectedRow++
				}
			} else {
				m.scroll++
			}
		case "k", "up":
			if m.activeTab == 0 {
				if m.selectedRow > 0 {
					m.selectedRow--
				}
			} else if m.scroll > 0 {
				m.scroll--
			}
		case "tab":
			m.activeTab = (m.activeTab + 1) % 3
			m.scroll = 0
		case "enter":
			if m.activeTab == 0 && m.selectedRow < len(m.runs) {
				m.activeTab = 1
				m.scroll = 0
				return m, m.loadCheckpointsCmd(m.runs[m.selectedRow].ID)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(tickCmd(), m.refreshCmd())

	case RunsLoadedMsg:
		if msg.Err != nil {
			m.statusMsg = "load failed: " + msg.Err.Error()
			return m, nil
		}
		m.runs = msg.Runs
		if m.selectedRow >= len(m.runs) && len(m.runs) > 0 {
			m.selectedRow = len(m.runs) - 1
		}
		m.lastRefresh = time.Now()
		m.statusMsg = ""

	case CheckpointsLoadedMsg:
		if msg.Err != nil {
			m.statusMsg = "load failed: " + msg.Err.Error()
			return m, nil
		}
		m.checkpoints = msg.Checkpoints

	case EventMsg:
		m.feed = append(m.feed, events.Event(msg))
		if len(m.feed) > maxFeedLen {
			m.feed = m.feed[len(m.feed)-maxFeedLen:]
		}
		return m, waitForEvent(m.eventCh)
	}

	return m, nil
}
