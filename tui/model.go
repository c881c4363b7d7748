// Package tui renders a live run monitor in the terminal.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/forgedev/forge-orch/internal/domain"
	"github.com/forgedev/forge-orch/internal/events"
	"github.com/forgedev/forge-orch/internal/runstore"
)

// Store provides the run data the monitor displays
type Store interface {
	ListRuns(opts runstore.ListOptions) ([]*domain.Run, error)
	List(runID string) ([]*domain.Checkpoint, error)
}

// Model is the TUI application model
type Model struct {
	store   Store
	eventCh <-chan events.Event

	// Data
	runs        []*domain.Run
	checkpoints []*domain.Checkpoint
	feed        []events.Event

	// UI state
	width       int
	height      int
	activeTab   int
	selectedRow int
	scroll      int
	statusMsg   string

	lastRefresh time.Time
}

// maxFeedLen bounds the in-memory event feed
const maxFeedLen = 200

// NewModel creates a new TUI model. The events channel may be nil when no
// live run is attached.
func NewModel(store Store, eventCh <-chan events.Event) Model {
	return Model{
		store:   store,
		eventCh: eventCh,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), m.refreshCmd()}
	if m.eventCh != nil {
		cmds = append(cmds, waitForEvent(m.eventCh))
	}
	return tea.Batch(cmds...)
}

// TickMsg triggers a refresh
type TickMsg time.Time

// RunsLoadedMsg carries a fresh run listing
type RunsLoadedMsg struct {
	Runs []*domain.Run
	Err  error
}

// CheckpointsLoadedMsg carries the selected run's audit trail
type CheckpointsLoadedMsg struct {
	Checkpoints []*domain.Checkpoint
	Err         error
}

// EventMsg wraps a live pipeline event
type EventMsg events.Event

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		runs, err := m.store.ListRuns(runstore.ListOptions{Limit: 50})
		return RunsLoadedMsg{Runs: runs, Err: err}
	}
}

func (m Model) loadCheckpointsCmd(runID string) tea.Cmd {
	return func() tea.Msg {
		checks, err := m.store.List(runID)
		return CheckpointsLoadedMsg{Checkpoints: checks, Err: err}
	}
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return EventMsg(e)
	}
}
