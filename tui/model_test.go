package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/forgedev/forge-orch/internal/domain"
	"github.com/forgedev/forge-orch/internal/events"
	"github.com/forgedev/forge-orch/internal/runstore"
)

type stubStore struct {
	runs        []*domain.Run
	checkpoints []*domain.Checkpoint
}

func (s *stubStore) ListRuns(opts runstore.ListOptions) ([]*domain.Run, error) {
	return s.runs, nil
}

func (s *stubStore) List(runID string) ([]*domain.Checkpoint, error) {
	return s.checkpoints, nil
}

func testRuns() []*domain.Run {
	started := time.Now().Add(-5 * time.Minute)
	return []*domain.Run{
		{ID: "11111111-aaaa", Goal: "build a JSON parser", Status: domain.RunActive, CurrentPhase: domain.PhaseCoding, StartedAt: &started},
		{ID: "22222222-bbbb", Goal: "build a web scraper", Status: domain.RunCompleted, CurrentPhase: domain.PhaseVerification},
		{ID: "33333333-cccc", Goal: "refactor the cache", Status: domain.RunFailed, CurrentPhase: domain.PhaseDiscovery},
	}
}

func keyMsg(key string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func TestNavigationKeys(t *testing.T) {
	m := NewModel(&stubStore{}, nil)
	m.runs = testRuns()

	next, _ := m.Update(keyMsg("j"))
	m = next.(Model)
	if m.selectedRow != 1 {
		t.Errorf("selectedRow = %d after j, want 1", m.selectedRow)
	}

	next, _ = m.Update(keyMsg("k"))
	m = next.(Model)
	if m.selectedRow != 0 {
		t.Errorf("selectedRow = %d after k, want 0", m.selectedRow)
	}

	// cannot move above the first row
	next, _ = m.Update(keyMsg("k"))
	m = next.(Model)
	if m.selectedRow != 0 {
		t.Errorf("selectedRow = %d, want 0", m.selectedRow)
	}

	// cannot move past the last row
	for i := 0; i < 10; i++ {
		next, _ = m.Update(keyMsg("j"))
		m = next.(Model)
	}
	if m.selectedRow != 2 {
		t.Errorf("selectedRow = %d, want 2", m.selectedRow)
	}
}

func TestTabSwitching(t *testing.T) {
	m := NewModel(&stubStore{}, nil)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if m.activeTab != 1 {
		t.Errorf("activeTab = %d, want 1", m.activeTab)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if m.activeTab != 0 {
		t.Errorf("activeTab = %d after full cycle, want 0", m.activeTab)
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(&stubStore{}, nil)
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce tea.Quit")
	}
}

func TestRunsLoaded(t *testing.T) {
	m := NewModel(&stubStore{}, nil)
	m.selectedRow = 5

	next, _ := m.Update(RunsLoadedMsg{Runs: testRuns()})
	m = next.(Model)

	if len(m.runs) != 3 {
		t.Errorf("runs = %d, want 3", len(m.runs))
	}
	if m.selectedRow != 2 {
		t.Errorf("selectedRow = %d, want clamped to 2", m.selectedRow)
	}
}

func TestEnterLoadsCheckpoints(t *testing.T) {
	store := &stubStore{checkpoints: []*domain.Checkpoint{
		{RunID: "11111111-aaaa", Seq: 1, Label: "start", CreatedAt: time.Now()},
	}}
	m := NewModel(store, nil)
	m.runs = testRuns()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if m.activeTab != 1 {
		t.Fatalf("activeTab = %d, want 1", m.activeTab)
	}
	if cmd == nil {
		t.Fatal("expected load command")
	}

	msg, ok := cmd().(CheckpointsLoadedMsg)
	if !ok {
		t.Fatalf("expected CheckpointsLoadedMsg, got %T", cmd())
	}
	next, _ = m.Update(msg)
	m = next.(Model)
	if len(m.checkpoints) != 1 || m.checkpoints[0].Label != "start" {
		t.Errorf("unexpected checkpoints: %+v", m.checkpoints)
	}
}

func TestEventFeedBounded(t *testing.T) {
	ch := make(chan events.Event, 1)
	m := NewModel(&stubStore{}, ch)

	for i := 0; i < maxFeedLen+50; i++ {
		ch <- events.Event{RunID: "r", Status: "phase_started", At: time.Now()}
		next, _ := m.Update(EventMsg(<-ch))
		m = next.(Model)
	}

	if len(m.feed) != maxFeedLen {
		t.Errorf("feed length = %d, want %d", len(m.feed), maxFeedLen)
	}
}

func TestViewRendersRuns(t *testing.T) {
	m := NewModel(&stubStore{}, nil)
	m.runs = testRuns()
	m.width = 120
	m.height = 40

	out := m.View()
	if !strings.Contains(out, "build a JSON parser") {
		t.Error("view should contain first run goal")
	}
	if !strings.Contains(out, "Runs: 3") {
		t.Error("view should show run count in header")
	}
}

func TestViewBeforeWindowSize(t *testing.T) {
	m := NewModel(&stubStore{}, nil)
	if m.View() != "Loading..." {
		t.Error("zero-width view should render the loading placeholder")
	}
}

func TestViewCheckpointsTab(t *testing.T) {
	m := NewModel(&stubStore{}, nil)
	m.width = 120
	m.height = 40
	m.activeTab = 1
	m.checkpoints = []*domain.Checkpoint{
		{Seq: 1, Label: "start", CreatedAt: time.Now()},
		{Seq: 2, Label: "candidate:claude", State: map[string]string{"provider": "claude"}, CreatedAt: time.Now()},
	}

	out := m.View()
	if !strings.Contains(out, "candidate:claude") {
		t.Error("view should list checkpoint labels")
	}
}
