package checkpoint

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgedev/forge-orch/internal/domain"
)

// MemoryStore is an in-process Store. Each run gets its own lock so appends
// for one run serialize without blocking other runs.
type MemoryStore struct {
	mu   sync.Mutex
	runs map[string]*runLog
}

type runLog struct {
	mu     sync.Mutex
	checks []*domain.Checkpoint
}

// NewMemoryStore creates an empty in-memory checkpoint store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*runLog)}
}

func (s *MemoryStore) log(runID string) *runLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.runs[runID]
	if !ok {
		l = &runLog{}
		s.runs[runID] = l
	}
	return l
}

// Append records a checkpoint with the next sequence number for the run
func (s *MemoryStore) Append(runID, label string, state map[string]string) (*domain.Checkpoint, error) {
	l := s.log(runID)
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := &domain.Checkpoint{
		ID:        uuid.NewString(),
		RunID:     runID,
		Seq:       len(l.checks) + 1,
		Label:     label,
		State:     cloneState(state),
		CreatedAt: time.Now(),
	}
	l.checks = append(l.checks, cp)
	return cp, nil
}

// List returns the run's checkpoints in sequence order
func (s *MemoryStore) List(runID string) ([]*domain.Checkpoint, error) {
	l := s.log(runID)
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Checkpoint, len(l.checks))
	copy(out, l.checks)
	return out, nil
}

func cloneState(state map[string]string) map[string]string {
	if state == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}
