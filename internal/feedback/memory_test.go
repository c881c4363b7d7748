package feedback

import (
	"strings"
	"testing"

	"github.com/forgedev/forge-orch/internal/domain"
)

func TestMemory_AccumulatesAcrossAttempts(t *testing.T) {
	m := NewMemory("run-1")

	m.Record(domain.PhaseCoding, domain.FeedbackEntry{Attempt: 1, Evaluator: "lint", Passed: false, Feedback: "unused import"})
	first := m.Entries(domain.PhaseCoding)

	m.Record(domain.PhaseCoding, domain.FeedbackEntry{Attempt: 2, Evaluator: "lint", Passed: false, Feedback: "still unused"})
	second := m.Entries(domain.PhaseCoding)

	if len(first) != 1 || len(second) != 2 {
		t.Fatalf("entries = %d then %d, want 1 then 2", len(first), len(second))
	}
	// attempt 2's memory is a superset of attempt 1's
	if second[0] != first[0] {
		t.Errorf("earlier entry changed: %+v vs %+v", second[0], first[0])
	}
}

func TestMemory_PhasesIsolated(t *testing.T) {
	m := NewMemory("run-1")
	m.Record(domain.PhaseCoding, domain.FeedbackEntry{Attempt: 1, Evaluator: "tests", Passed: false})

	if got := m.Entries(domain.PhaseVerification); len(got) != 0 {
		t.Errorf("verification entries = %d, want 0", len(got))
	}
}

func TestMemory_Clear(t *testing.T) {
	m := NewMemory("run-1")
	m.Record(domain.PhaseCoding, domain.FeedbackEntry{Attempt: 1, Evaluator: "tests", Passed: false})
	m.Clear(domain.PhaseCoding)

	if got := m.Entries(domain.PhaseCoding); len(got) != 0 {
		t.Errorf("entries after clear = %d, want 0", len(got))
	}
	if m.Serialize(domain.PhaseCoding) != "" {
		t.Error("Serialize after clear should be empty")
	}
}

func TestMemory_SerializeAttributesFeedback(t *testing.T) {
	m := NewMemory("run-1")
	m.Record(domain.PhaseCoding, domain.FeedbackEntry{Attempt: 1, Evaluator: "lint", Passed: false, Feedback: "missing newline"})
	m.Record(domain.PhaseCoding, domain.FeedbackEntry{Attempt: 1, Evaluator: "tests", Passed: false, Feedback: "TestFoo failed"})

	out := m.Serialize(domain.PhaseCoding)
	for _, want := range []string{"[attempt 1] lint: FAIL", "missing newline", "[attempt 1] tests: FAIL", "TestFoo failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("Serialize missing %q in:\n%s", want, out)
		}
	}
}
