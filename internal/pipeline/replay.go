package pipeline

import (
	"strings"

	"github.com/forgedev/forge-orch/internal/checkpoint"
	"github.com/forgedev/forge-orch/internal/domain"
)

// Replay folds a run's checkpoint list back into its final status. Because
// checkpoints are totally ordered and never mutated, replaying the same
// list always reconstructs the same outcome.
func Replay(checks []*domain.Checkpoint) domain.RunStatus {
	if len(checks) == 0 {
		return domain.RunPending
	}

	status := domain.RunActive
	for _, cp := range checks {
		switch {
		case cp.Label == checkpoint.LabelDone:
			status = domain.RunCompleted
		case strings.HasPrefix(cp.Label, "phase:") && strings.HasSuffix(cp.Label, ":exhausted"):
			status = domain.RunFailed
		}
	}
	return status
}

// ReplayPhase returns the last phase a checkpoint list reached, or "" when
// no phase checkpoint exists yet
func ReplayPhase(checks []*domain.Checkpoint) domain.PhaseName {
	var last domain.PhaseName
	for _, cp := range checks {
		if !strings.HasPrefix(cp.Label, "phase:") {
			continue
		}
		parts := strings.SplitN(cp.Label, ":", 3)
		if len(parts) == 3 && domain.PhaseName(parts[1]).Valid() {
			last = domain.PhaseName(parts[1])
		}
	}
	return last
}
