// Package feedback accumulates evaluator feedback across retry attempts of
// a single phase so degraded attempts see the complete failure history.
package feedback

import (
	"fmt"
	"strings"
	"sync"

	"github.com/forgedev/forge-orch/internal/domain"
)

// Memory is a per-run accumulator of evaluator feedback, keyed by phase.
// Entries grow monotonically across attempts within a phase and are cleared
// when the phase changes. Never shared across runs.
type Memory struct {
	mu      sync.Mutex
	runID   string
	entries map[domain.PhaseName][]domain.FeedbackEntry
}

// NewMemory creates an empty feedback memory for one run
func NewMemory(runID string) *Memory {
	return &Memory{
		runID:   runID,
		entries: make(map[domain.PhaseName][]domain.FeedbackEntry),
	}
}

// RunID returns the owning run's ID
func (m *Memory) RunID() string {
	return m.runID
}

// Record appends one evaluator result for a phase attempt
func (m *Memory) Record(phase domain.PhaseName, entry domain.FeedbackEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[phase] = append(m.entries[phase], entry)
}

// Entries returns a copy of the accumulated entries for a phase
func (m *Memory) Entries(phase domain.PhaseName) []domain.FeedbackEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.FeedbackEntry, len(m.entries[phase]))
	copy(out, m.entries[phase])
	return out
}

// Clear drops all entries for a phase. Called when the phase passes and the
// run moves on.
func (m *Memory) Clear(phase domain.PhaseName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, phase)
}

// Serialize renders the phase's failure history for prompt injection. Each
// entry keeps its evaluator attribution and verbatim feedback text.
func (m *Memory) Serialize(phase domain.PhaseName) string {
	entries := m.Entries(phase)
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previous attempts failed evaluation. Full history:\n")
	for _, e := range entries {
		verdict := "FAIL"
		if e.Passed {
			verdict = "PASS"
		}
		fmt.Fprintf(&b, "\n[attempt %d] %s: %s\n", e.Attempt, e.Evaluator, verdict)
		if e.Feedback != "" {
			b.WriteString(e.Feedback)
			if !strings.HasSuffix(e.Feedback, "\n") {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
