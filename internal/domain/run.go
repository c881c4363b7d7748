package domain

import "time"

// Run represents one execution of the whole pipeline for a task goal
type Run struct {
	ID            string
	Goal          string
	Providers     []string
	CurrentPhase  PhaseName
	Status        RunStatus
	WorkspacePath string
	MaxRetries    int
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// Retries returns the configured attempt budget, falling back to the default
func (r *Run) Retries() int {
	if r.MaxRetries > 0 {
		return r.MaxRetries
	}
	return DefaultMaxRetries
}

// Candidate is one provider's output for one coordinator round.
// Immutable after creation; failed attempts are candidates too.
type Candidate struct {
	ID           string
	RunID        string
	Provider     string
	Model        string
	Output       string
	ToolCalls    []ToolCall
	DurationMS   int64
	TokensInput  int
	TokensOutput int
	TraceID      string
	Error        string // empty on success
	CreatedAt    time.Time
}

// Succeeded reports whether the provider produced usable output
func (c *Candidate) Succeeded() bool {
	return c.Error == ""
}

// ToolCall is one entry in a candidate's structured tool-call log
type ToolCall struct {
	Name  string `json:"name"`
	Input string `json:"input,omitempty"`
}

// Decision is the judge's selection among a round's candidates
type Decision struct {
	ID          string
	RunID       string
	CandidateID string
	Score       *float64 // in [0,1] when the judge reports one
	Rationale   string
	JudgeModel  string
	TraceID     string
	CreatedAt   time.Time
}

// Checkpoint is a labeled, sequence-numbered snapshot in a run's audit
// trail. Seq is strictly increasing per run with no gaps; checkpoints are
// never mutated or deleted.
type Checkpoint struct {
	ID        string
	RunID     string
	Seq       int
	Label     string
	State     map[string]string
	CreatedAt time.Time
}

// FeedbackEntry records one evaluator's verdict for one phase attempt
type FeedbackEntry struct {
	Attempt   int
	Evaluator string
	Passed    bool
	Score     *float64
	Feedback  string
}
