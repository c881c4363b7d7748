// Package events carries run progress notifications to external consumers.
// Delivery is best-effort and never affects run correctness.
package events

import (
	"time"

	"github.com/forgedev/forge-orch/internal/domain"
)

// Event is emitted on every phase-attempt transition and on run
// completion/failure
type Event struct {
	RunID   string           `json:"run_id"`
	Phase   domain.PhaseName `json:"phase,omitempty"`
	Status  string           `json:"status"`
	Attempt int              `json:"attempt,omitempty"`
	Details string           `json:"details,omitempty"`
	At      time.Time        `json:"at"`
}

// Event statuses
const (
	StatusPhaseStarted = "phase_started"
	StatusPhasePassed  = "phase_passed"
	StatusPhaseFailed  = "phase_failed"
	StatusRunCompleted = "run_completed"
	StatusRunFailed    = "run_failed"
)

// Sink receives events. Publish must not block the caller; implementations
// drop events they cannot deliver.
type Sink interface {
	Publish(e Event)
}

// NoopSink discards everything (for tests or disabled notifications)
type NoopSink struct{}

func (NoopSink) Publish(e Event) {}

// MultiSink fans out to several sinks
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink that publishes to all provided sinks
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Publish(e Event) {
	for _, s := range m.sinks {
		s.Publish(e)
	}
}

// ChanSink delivers events to a channel, dropping when the receiver lags.
// The TUI and tests consume runs this way.
type ChanSink struct {
	C chan Event
}

// NewChanSink creates a ChanSink with the given buffer
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{C: make(chan Event, buffer)}
}

func (s *ChanSink) Publish(e Event) {
	select {
	case s.C <- e:
	default:
	}
}
