package domain

// RunStatus represents the lifecycle state of a run
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether a run in this status will never change again
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// PhaseName identifies a pipeline stage
type PhaseName string

const (
	PhaseDiscovery    PhaseName = "discovery"
	PhaseCoding       PhaseName = "coding"
	PhaseVerification PhaseName = "verification"
)

// Phases lists the pipeline stages in execution order
var Phases = []PhaseName{PhaseDiscovery, PhaseCoding, PhaseVerification}

// Next returns the phase that follows p, or "" if p is the last phase
func (p PhaseName) Next() PhaseName {
	for i, name := range Phases {
		if name == p && i+1 < len(Phases) {
			return Phases[i+1]
		}
	}
	return ""
}

// Valid reports whether p names a known phase
func (p PhaseName) Valid() bool {
	for _, name := range Phases {
		if name == p {
			return true
		}
	}
	return false
}

// DefaultMaxRetries is the per-phase attempt budget when a run does not
// configure its own
const DefaultMaxRetries = 3
