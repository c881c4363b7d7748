package checkpoint

import (
	"fmt"
	"sync"
	"testing"

	"github.com/forgedev/forge-orch/internal/domain"
)

func TestMemoryStore_SequenceNumbers(t *testing.T) {
	store := NewMemoryStore()

	for i := 0; i < 5; i++ {
		cp, err := store.Append("run-1", fmt.Sprintf("label-%d", i), nil)
		if err != nil {
			t.Fatal(err)
		}
		if cp.Seq != i+1 {
			t.Errorf("Seq = %d, want %d", cp.Seq, i+1)
		}
	}

	checks, err := store.List("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(checks) != 5 {
		t.Fatalf("List count = %d, want 5", len(checks))
	}
}

func TestMemoryStore_ConcurrentAppendsGapFree(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Append("run-1", "candidate:p", nil); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	checks, err := store.List("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(checks) != 50 {
		t.Fatalf("List count = %d, want 50", len(checks))
	}
	for i, cp := range checks {
		if cp.Seq != i+1 {
			t.Errorf("checkpoint %d has Seq %d, want %d", i, cp.Seq, i+1)
		}
	}
}

func TestMemoryStore_RunsIsolated(t *testing.T) {
	store := NewMemoryStore()

	store.Append("run-a", LabelStart, nil)
	store.Append("run-b", LabelStart, nil)
	cp, _ := store.Append("run-a", LabelDecision, nil)

	if cp.Seq != 2 {
		t.Errorf("run-a second checkpoint Seq = %d, want 2", cp.Seq)
	}

	b, _ := store.List("run-b")
	if len(b) != 1 || b[0].Seq != 1 {
		t.Errorf("run-b log = %+v, want single Seq 1 entry", b)
	}
}

func TestMemoryStore_StateIsCopied(t *testing.T) {
	store := NewMemoryStore()

	state := map[string]string{"phase": "coding"}
	cp, _ := store.Append("run-1", LabelStart, state)
	state["phase"] = "mutated"

	if cp.State["phase"] != "coding" {
		t.Errorf("checkpoint state mutated after append: %q", cp.State["phase"])
	}
}

func TestLabels(t *testing.T) {
	if got := CandidateLabel("claude-code"); got != "candidate:claude-code" {
		t.Errorf("CandidateLabel = %q", got)
	}
	if got := PhaseLabel(domain.PhaseCoding, 2); got != "phase:coding:2" {
		t.Errorf("PhaseLabel = %q", got)
	}
	if got := ExhaustedLabel(domain.PhaseVerification); got != "phase:verification:exhausted" {
		t.Errorf("ExhaustedLabel = %q", got)
	}
}
