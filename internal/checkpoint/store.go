// Package checkpoint provides the append-only ordered log of labeled state
// snapshots that forms a run's audit trail.
package checkpoint

import (
	"fmt"

	"github.com/forgedev/forge-orch/internal/domain"
)

// Well-known checkpoint labels
const (
	LabelStart    = "start"
	LabelDecision = "decision"
	LabelDone     = "done"
)

// CandidateLabel returns the label for a candidate checkpoint
func CandidateLabel(provider string) string {
	return "candidate:" + provider
}

// PhaseLabel returns the label for a phase-attempt checkpoint
func PhaseLabel(phase domain.PhaseName, attempt int) string {
	return fmt.Sprintf("phase:%s:%d", phase, attempt)
}

// ExhaustedLabel returns the terminal label for a phase that ran out of
// retry budget
func ExhaustedLabel(phase domain.PhaseName) string {
	return fmt.Sprintf("phase:%s:exhausted", phase)
}

// Store is an append-only ordered log of checkpoints per run. Append must
// serialize concurrent calls for the same run so sequence numbers stay
// gap-free and monotonic even when candidates complete concurrently.
type Store interface {
	Append(runID, label string, state map[string]string) (*domain.Checkpoint, error)
	List(runID string) ([]*domain.Checkpoint, error)
}
