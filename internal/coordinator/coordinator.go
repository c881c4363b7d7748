// Package coordinator executes one round of a phase attempt: parallel
// candidate generation across every configured provider, judge selection,
// and checkpoint emission. Every attempt, success or failure, is recorded
// before ExecuteRound returns.
package coordinator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/forgedev/forge-orch/internal/checkpoint"
	"github.com/forgedev/forge-orch/internal/domain"
	"github.com/forgedev/forge-orch/internal/judge"
	"github.com/forgedev/forge-orch/internal/provider"
)

// Recorder persists candidates and decisions. Implementations must be safe
// for concurrent SaveCandidate calls.
type Recorder interface {
	SaveCandidate(c *domain.Candidate) error
	SaveDecision(d *domain.Decision) error
}

// Provider pairs a client with the model configuration its calls use
type Provider struct {
	Client provider.Client
	Config provider.ModelConfig
}

// Config holds coordinator timeouts
type Config struct {
	ProviderTimeout time.Duration
	JudgeTimeout    time.Duration
}

// Coordinator fans generation out to providers and reconciles the results
type Coordinator struct {
	providers []Provider
	judge     judge.Judge
	checks    checkpoint.Store
	recorder  Recorder // optional
	config    Config
}

// New creates a Coordinator. recorder may be nil when durable candidate
// persistence is not wanted (the checkpoint store still gets everything).
func New(providers []Provider, j judge.Judge, checks checkpoint.Store, recorder Recorder, config Config) *Coordinator {
	if config.ProviderTimeout == 0 {
		config.ProviderTimeout = 10 * time.Minute
	}
	if config.JudgeTimeout == 0 {
		config.JudgeTimeout = 2 * time.Minute
	}
	return &Coordinator{
		providers: providers,
		judge:     j,
		checks:    checks,
		recorder:  recorder,
		config:    config,
	}
}

// PhaseContext carries the round's prompt. Prompt already includes the
// serialized feedback history on retry attempts.
type PhaseContext struct {
	Phase   domain.PhaseName
	Attempt int
	Prompt  string
}

// RoundResult is the outcome of one coordinator round
type RoundResult struct {
	Candidates []*domain.Candidate
	Decision   *domain.Decision
}

// Winner returns the selected candidate, or nil when there is no decision
func (r *RoundResult) Winner() *domain.Candidate {
	if r.Decision == nil {
		return nil
	}
	for _, c := range r.Candidates {
		if c.ID == r.Decision.CandidateID {
			return c
		}
	}
	return nil
}

// ExecuteRound dispatches one generation per provider in the run's provider
// set concurrently, records every attempt as a candidate checkpoint in
// completion order, then selects a winner. A nil Decision with a non-nil
// error means the round failed: ErrAllCandidatesFailed when nothing
// succeeded, ErrJudge when the judge call failed despite successful
// candidates, or a storage error when the audit trail could not be written.
func (c *Coordinator) ExecuteRound(ctx context.Context, run *domain.Run, phaseCtx PhaseContext) (*RoundResult, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	providers := c.providersFor(run)
	if len(providers) == 0 {
		return nil, fmt.Errorf("run %s requests providers %s but none are configured", run.ID, strings.Join(run.Providers, ","))
	}

	var (
		mu         sync.Mutex
		candidates []*domain.Candidate
	)

	// Wait-for-all join: one provider failing never cancels the others,
	// because partial-failure auditability requires recording every attempt.
	var g errgroup.Group
	for _, p := range providers {
		p := p
		g.Go(func() error {
			cand := c.generate(ctx, run, p, phaseCtx)

			// Appending the checkpoint and the slice entry under one lock
			// keeps candidate order aligned with checkpoint order.
			mu.Lock()
			defer mu.Unlock()
			if _, err := c.checks.Append(run.ID, checkpoint.CandidateLabel(p.Client.Name()), candidateState(cand)); err != nil {
				return fmt.Errorf("checkpointing candidate from %s: %w", p.Client.Name(), err)
			}
			if c.recorder != nil {
				if err := c.recorder.SaveCandidate(cand); err != nil {
					return fmt.Errorf("saving candidate %s: %w", cand.ID, err)
				}
			}
			candidates = append(candidates, cand)
			return nil
		})
	}
	// The audit trail is the product here. A candidate the store could not
	// record fails the round rather than silently vanishing from the log.
	if err := g.Wait(); err != nil {
		return &RoundResult{Candidates: candidates}, err
	}

	result := &RoundResult{Candidates: candidates}

	successes := make([]*domain.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Succeeded() {
			successes = append(successes, cand)
		}
	}

	if len(successes) == 0 {
		return result, fmt.Errorf("%w: %s", domain.ErrAllCandidatesFailed, errorSummary(candidates))
	}

	decision, err := c.decide(ctx, run, successes)
	if err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrJudge, err)
	}

	if _, err := c.checks.Append(run.ID, checkpoint.LabelDecision, decisionState(decision)); err != nil {
		return result, fmt.Errorf("checkpointing decision: %w", err)
	}
	if c.recorder != nil {
		if err := c.recorder.SaveDecision(decision); err != nil {
			return result, fmt.Errorf("saving decision %s: %w", decision.ID, err)
		}
	}

	result.Decision = decision
	return result, nil
}

// providersFor narrows the fan-out to the run's configured provider set.
// An empty set on the run means every provider the coordinator knows.
func (c *Coordinator) providersFor(run *domain.Run) []Provider {
	if len(run.Providers) == 0 {
		return c.providers
	}
	want := make(map[string]bool, len(run.Providers))
	for _, name := range run.Providers {
		want[name] = true
	}
	out := make([]Provider, 0, len(run.Providers))
	for _, p := range c.providers {
		if want[p.Client.Name()] {
			out = append(out, p)
		}
	}
	return out
}

// generate runs one provider call with its own timeout and converts the
// outcome, success or failure, into an immutable candidate record
func (c *Coordinator) generate(ctx context.Context, run *domain.Run, p Provider, phaseCtx PhaseContext) *domain.Candidate {
	callCtx, cancel := context.WithTimeout(ctx, c.config.ProviderTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.Client.Generate(callCtx, provider.Request{
		Prompt:  phaseCtx.Prompt,
		Config:  p.Config,
		WorkDir: run.WorkspacePath,
	})
	elapsed := time.Since(start)

	cand := &domain.Candidate{
		ID:         uuid.NewString(),
		RunID:      run.ID,
		Provider:   p.Client.Name(),
		Model:      p.Config.Model,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  time.Now(),
	}

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			cand.Error = fmt.Sprintf("timeout after %s", c.config.ProviderTimeout)
		} else {
			cand.Error = err.Error()
		}
		return cand
	}

	cand.Output = res.Text
	cand.ToolCalls = res.ToolCalls
	cand.TokensInput = res.TokensInput
	cand.TokensOutput = res.TokensOutput
	cand.TraceID = res.TraceID
	if res.Model != "" {
		cand.Model = res.Model
	}
	return cand
}

// decide picks the winning candidate. A single success skips the judge but
// still produces a decision record.
func (c *Coordinator) decide(ctx context.Context, run *domain.Run, successes []*domain.Candidate) (*domain.Decision, error) {
	if len(successes) == 1 {
		return &domain.Decision{
			ID:          uuid.NewString(),
			RunID:       run.ID,
			CandidateID: successes[0].ID,
			Rationale:   "single candidate, no judge invoked",
			CreatedAt:   time.Now(),
		}, nil
	}

	summaries := make([]judge.CandidateSummary, len(successes))
	for i, cand := range successes {
		summaries[i] = judge.CandidateSummary{Provider: cand.Provider, Text: cand.Output}
	}

	judgeCtx, cancel := context.WithTimeout(ctx, c.config.JudgeTimeout)
	defer cancel()

	sel, err := c.judge.Select(judgeCtx, summaries)
	if err != nil {
		return nil, err
	}

	var selected *domain.Candidate
	for _, cand := range successes {
		if cand.Provider == sel.Provider {
			selected = cand
			break
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("judge selected %q which is not a successful candidate", sel.Provider)
	}

	return &domain.Decision{
		ID:          uuid.NewString(),
		RunID:       run.ID,
		CandidateID: selected.ID,
		Score:       sel.Score,
		Rationale:   sel.Rationale,
		JudgeModel:  sel.Model,
		TraceID:     sel.TraceID,
		CreatedAt:   time.Now(),
	}, nil
}

func candidateState(c *domain.Candidate) map[string]string {
	state := map[string]string{
		"candidate_id": c.ID,
		"provider":     c.Provider,
		"duration_ms":  strconv.FormatInt(c.DurationMS, 10),
	}
	if c.Model != "" {
		state["model"] = c.Model
	}
	if c.Error != "" {
		state["error"] = c.Error
	} else {
		state["tokens_input"] = strconv.Itoa(c.TokensInput)
		state["tokens_output"] = strconv.Itoa(c.TokensOutput)
	}
	return state
}

func decisionState(d *domain.Decision) map[string]string {
	state := map[string]string{
		"decision_id":  d.ID,
		"candidate_id": d.CandidateID,
		"rationale":    d.Rationale,
	}
	if d.Score != nil {
		state["score"] = strconv.FormatFloat(*d.Score, 'f', -1, 64)
	}
	if d.JudgeModel != "" {
		state["judge_model"] = d.JudgeModel
	}
	return state
}

func errorSummary(candidates []*domain.Candidate) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Error != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", c.Provider, c.Error))
		}
	}
	return strings.Join(parts, "; ")
}
