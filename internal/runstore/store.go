// Package runstore provides SQLite-backed persistence for runs and their
// audit trail: candidates, decisions and checkpoints.
package runstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/forgedev/forge-orch/internal/domain"
)

// Store persists runs, candidates, decisions and checkpoints. It satisfies
// checkpoint.Store, coordinator.Recorder and pipeline.RunStore.
type Store struct {
	db *sql.DB

	// appendMu serializes checkpoint appends per run so sequence numbers
	// stay gap-free under concurrent candidate completion
	mu       sync.Mutex
	appendMu map[string]*sync.Mutex
}

// New creates a Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection keeps in-memory databases coherent and avoids
	// SQLITE_BUSY under concurrent appends
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, appendMu: make(map[string]*sync.Mutex)}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run
func (s *Store) SaveRun(run *domain.Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, goal, providers, current_phase, status, workspace_path, max_retries, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_phase = excluded.current_phase,
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`,
		run.ID,
		run.Goal,
		strings.Join(run.Providers, ","),
		string(run.CurrentPhase),
		string(run.Status),
		run.WorkspacePath,
		run.MaxRetries,
		run.CreatedAt,
		run.StartedAt,
		run.FinishedAt,
	)
	return err
}

// UpdateRun updates a run's mutable fields
func (s *Store) UpdateRun(run *domain.Run) error {
	_, err := s.db.Exec(`
		UPDATE runs SET current_phase = ?, status = ?, started_at = ?, finished_at = ? WHERE id = ?
	`, string(run.CurrentPhase), string(run.Status), run.StartedAt, run.FinishedAt, run.ID)
	return err
}

// GetRun retrieves a run by ID. A missing run is (nil, nil), not an error.
func (s *Store) GetRun(id string) (*domain.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, goal, providers, current_phase, status, workspace_path, max_retries, created_at, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ListOptions filters run listings
type ListOptions struct {
	Status domain.RunStatus
	Limit  int
}

// ListRuns returns runs matching the options, newest first
func (s *Store) ListRuns(opts ListOptions) ([]*domain.Run, error) {
	query := `SELECT id, goal, providers, current_phase, status, workspace_path, max_retries, created_at, started_at, finished_at FROM runs WHERE 1=1`
	var args []interface{}

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveCandidate inserts a candidate record
func (s *Store) SaveCandidate(c *domain.Candidate) error {
	toolsJSON, err := json.Marshal(c.ToolCalls)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO candidates (id, run_id, provider, model, output, tool_calls, duration_ms, tokens_input, tokens_output, trace_id, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.RunID, c.Provider, c.Model, c.Output, string(toolsJSON),
		c.DurationMS, c.TokensInput, c.TokensOutput, c.TraceID, c.Error, c.CreatedAt,
	)
	return err
}

// ListCandidates returns a run's candidates in creation order
func (s *Store) ListCandidates(runID string) ([]*domain.Candidate, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, provider, model, output, tool_calls, duration_ms, tokens_input, tokens_output, trace_id, error, created_at
		FROM candidates WHERE run_id = ? ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		var toolsJSON string
		if err := rows.Scan(&c.ID, &c.RunID, &c.Provider, &c.Model, &c.Output, &toolsJSON,
			&c.DurationMS, &c.TokensInput, &c.TokensOutput, &c.TraceID, &c.Error, &c.CreatedAt); err != nil {
			return nil, err
		}
		if toolsJSON != "" && toolsJSON != "null" {
			if err := json.Unmarshal([]byte(toolsJSON), &c.ToolCalls); err != nil {
				return nil, err
			}
		}
		candidates = append(candidates, &c)
	}
	return candidates, rows.Err()
}

// SaveDecision inserts a decision record
func (s *Store) SaveDecision(d *domain.Decision) error {
	var score interface{}
	if d.Score != nil {
		score = *d.Score
	}
	_, err := s.db.Exec(`
		INSERT INTO decisions (id, run_id, candidate_id, score, rationale, judge_model, trace_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.RunID, d.CandidateID, score, d.Rationale, d.JudgeModel, d.TraceID, d.CreatedAt)
	return err
}

// ListDecisions returns a run's decisions in creation order
func (s *Store) ListDecisions(runID string) ([]*domain.Decision, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, candidate_id, score, rationale, judge_model, trace_id, created_at
		FROM decisions WHERE run_id = ? ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.Decision
	for rows.Next() {
		var d domain.Decision
		var score sql.NullFloat64
		if err := rows.Scan(&d.ID, &d.RunID, &d.CandidateID, &score, &d.Rationale, &d.JudgeModel, &d.TraceID, &d.CreatedAt); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			d.Score = &v
		}
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}

// runLock returns the checkpoint append lock for a run
func (s *Store) runLock(runID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.appendMu[runID]
	if !ok {
		l = &sync.Mutex{}
		s.appendMu[runID] = l
	}
	return l
}

// Append records a checkpoint with the next sequence number for the run.
// Safe for concurrent use; appends for the same run serialize on a per-run
// lock so numbers stay gap-free.
func (s *Store) Append(runID, label string, state map[string]string) (*domain.Checkpoint, error) {
	l := s.runLock(runID)
	l.Lock()
	defer l.Unlock()

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM checkpoints WHERE run_id = ?`, runID).Scan(&count); err != nil {
		return nil, err
	}

	cp := &domain.Checkpoint{
		ID:        uuid.NewString(),
		RunID:     runID,
		Seq:       count + 1,
		Label:     label,
		State:     state,
		CreatedAt: time.Now(),
	}
	if cp.State == nil {
		cp.State = map[string]string{}
	}

	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`
		INSERT INTO checkpoints (id, run_id, seq, label, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cp.ID, cp.RunID, cp.Seq, cp.Label, string(stateJSON), cp.CreatedAt); err != nil {
		return nil, err
	}
	return cp, nil
}

// List returns a run's checkpoints in sequence order
func (s *Store) List(runID string) ([]*domain.Checkpoint, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, seq, label, state, created_at
		FROM checkpoints WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []*domain.Checkpoint
	for rows.Next() {
		var cp domain.Checkpoint
		var stateJSON string
		if err := rows.Scan(&cp.ID, &cp.RunID, &cp.Seq, &cp.Label, &stateJSON, &cp.CreatedAt); err != nil {
			return nil, err
		}
		if stateJSON != "" {
			if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
				return nil, err
			}
		}
		checks = append(checks, &cp)
	}
	return checks, rows.Err()
}

func scanRun(scan func(dest ...interface{}) error) (*domain.Run, error) {
	var run domain.Run
	var providers, phase, status string
	var startedAt, finishedAt sql.NullTime

	err := scan(&run.ID, &run.Goal, &providers, &phase, &status, &run.WorkspacePath,
		&run.MaxRetries, &run.CreatedAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if providers != "" {
		run.Providers = strings.Split(providers, ",")
	}
	run.CurrentPhase = domain.PhaseName(phase)
	run.Status = domain.RunStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
