package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/forgedev/forge-orch/internal/domain"
	"github.com/forgedev/forge-orch/internal/runstore"
)

// RunResponse is the API response for a run
type RunResponse struct {
	ID            string   `json:"id"`
	Goal          string   `json:"goal"`
	Providers     []string `json:"providers"`
	CurrentPhase  string   `json:"current_phase"`
	Status        string   `json:"status"`
	WorkspacePath string   `json:"workspace_path,omitempty"`
	MaxRetries    int      `json:"max_retries"`
	CreatedAt     string   `json:"created_at"`
	StartedAt     *string  `json:"started_at,omitempty"`
	FinishedAt    *string  `json:"finished_at,omitempty"`
}

// StatusResponse is the API response for overall status
type StatusResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// CandidateResponse is the API response for a candidate
type CandidateResponse struct {
	ID           string `json:"id"`
	Provider     string `json:"provider"`
	Model        string `json:"model,omitempty"`
	Succeeded    bool   `json:"succeeded"`
	DurationMS   int64  `json:"duration_ms"`
	TokensInput  int    `json:"tokens_input"`
	TokensOutput int    `json:"tokens_output"`
	TraceID      string `json:"trace_id,omitempty"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// DecisionResponse is the API response for a judge decision
type DecisionResponse struct {
	ID          string   `json:"id"`
	CandidateID string   `json:"candidate_id"`
	Score       *float64 `json:"score,omitempty"`
	Rationale   string   `json:"rationale"`
	JudgeModel  string   `json:"judge_model,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

// CheckpointResponse is the API response for a checkpoint
type CheckpointResponse struct {
	Seq       int               `json:"seq"`
	Label     string            `json:"label"`
	State     map[string]string `json:"state,omitempty"`
	CreatedAt string            `json:"created_at"`
}

func runToResponse(r *domain.Run) RunResponse {
	resp := RunResponse{
		ID:            r.ID,
		Goal:          r.Goal,
		Providers:     r.Providers,
		CurrentPhase:  string(r.CurrentPhase),
		Status:        string(r.Status),
		WorkspacePath: r.WorkspacePath,
		MaxRetries:    r.Retries(),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if r.StartedAt != nil {
		t := r.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := r.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &t
	}
	return resp
}

func candidateToResponse(c *domain.Candidate) CandidateResponse {
	return CandidateResponse{
		ID:           c.ID,
		Provider:     c.Provider,
		Model:        c.Model,
		Succeeded:    c.Succeeded(),
		DurationMS:   c.DurationMS,
		TokensInput:  c.TokensInput,
		TokensOutput: c.TokensOutput,
		TraceID:      c.TraceID,
		Error:        c.Error,
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
}

func decisionToResponse(d *domain.Decision) DecisionResponse {
	return DecisionResponse{
		ID:          d.ID,
		CandidateID: d.CandidateID,
		Score:       d.Score,
		Rationale:   d.Rationale,
		JudgeModel:  d.JudgeModel,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
	}
}

func checkpointToResponse(c *domain.Checkpoint) CheckpointResponse {
	return CheckpointResponse{
		Seq:       c.Seq,
		Label:     c.Label,
		State:     c.State,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		runs, err := s.store.ListRuns(runstore.ListOptions{})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		var status StatusResponse
		status.Total = len(runs)

		for _, run := range runs {
			switch run.Status {
			case domain.RunPending:
				status.Pending++
			case domain.RunActive:
				status.Active++
			case domain.RunCompleted:
				status.Completed++
			case domain.RunFailed:
				status.Failed++
			}
		}

		writeJSON(w, status)
	}
}

func (s *Server) listRunsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		opts := runstore.ListOptions{
			Status: domain.RunStatus(r.URL.Query().Get("status")),
		}

		runs, err := s.store.ListRuns(opts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]RunResponse, len(runs))
		for i, run := range runs {
			responses[i] = runToResponse(run)
		}

		writeJSON(w, responses)
	}
}

// runSubresourceHandler serves /api/runs/{id} and its candidates,
// decisions, and checkpoints subresources
func (s *Server) runSubresourceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if path == "" {
			writeError(w, http.StatusBadRequest, "run ID required")
			return
		}

		runID, sub := path, ""
		if idx := strings.Index(path, "/"); idx > 0 {
			runID, sub = path[:idx], path[idx+1:]
		}

		run, err := s.store.GetRun(runID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if run == nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}

		switch sub {
		case "":
			writeJSON(w, runToResponse(run))
		case "candidates":
			s.writeCandidates(w, runID)
		case "decisions":
			s.writeDecisions(w, runID)
		case "checkpoints":
			s.writeCheckpoints(w, runID)
		default:
			writeError(w, http.StatusNotFound, "unknown subresource")
		}
	}
}

func (s *Server) writeCandidates(w http.ResponseWriter, runID string) {
	candidates, err := s.store.ListCandidates(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]CandidateResponse, len(candidates))
	for i, c := range candidates {
		resp[i] = candidateToResponse(c)
	}
	writeJSON(w, resp)
}

func (s *Server) writeDecisions(w http.ResponseWriter, runID string) {
	decisions, err := s.store.ListDecisions(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]DecisionResponse, len(decisions))
	for i, d := range decisions {
		resp[i] = decisionToResponse(d)
	}
	writeJSON(w, resp)
}

func (s *Server) writeCheckpoints(w http.ResponseWriter, runID string) {
	checks, err := s.store.List(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]CheckpointResponse, len(checks))
	for i, c := range checks {
		resp[i] = checkpointToResponse(c)
	}
	writeJSON(w, resp)
}
