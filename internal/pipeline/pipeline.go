// Package pipeline sequences the phases of a run: discovery, coding,
// verification. Each phase attempt executes one coordinator round, applies
// the winning output to the workspace, evaluates the result, and retries
// with accumulated feedback until it passes or the retry budget is spent.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/forgedev/forge-orch/internal/checkpoint"
	"github.com/forgedev/forge-orch/internal/coordinator"
	"github.com/forgedev/forge-orch/internal/domain"
	"github.com/forgedev/forge-orch/internal/evaluator"
	"github.com/forgedev/forge-orch/internal/events"
	"github.com/forgedev/forge-orch/internal/feedback"
	"github.com/forgedev/forge-orch/internal/workspace"
)

// RoundExecutor runs one coordinator round. Satisfied by
// coordinator.Coordinator; tests substitute scripted executors.
type RoundExecutor interface {
	ExecuteRound(ctx context.Context, run *domain.Run, phaseCtx coordinator.PhaseContext) (*coordinator.RoundResult, error)
}

// RunStore persists run lifecycle updates. Optional; nil disables
// persistence.
type RunStore interface {
	SaveRun(run *domain.Run) error
	UpdateRun(run *domain.Run) error
}

// Engine is the phase state machine. It is strictly sequential: one phase
// attempt in flight per run at a time. Distinct runs may execute on
// separate Engines (or the same one) concurrently; they share no mutable
// state beyond the per-run checkpoint locks.
type Engine struct {
	coord  RoundExecutor
	evals  *evaluator.Registry
	checks checkpoint.Store
	sink   events.Sink
	runs   RunStore // optional

	// apply materializes a winning candidate into the run's workspace;
	// overridable in tests
	apply func(ws *workspace.Workspace, phase domain.PhaseName, cand *domain.Candidate) error
}

// New creates an Engine
func New(coord RoundExecutor, evals *evaluator.Registry, checks checkpoint.Store, sink events.Sink, runs RunStore) *Engine {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &Engine{
		coord:  coord,
		evals:  evals,
		checks: checks,
		sink:   sink,
		runs:   runs,
		apply:  workspace.ApplyOutput,
	}
}

// Execute drives a run from pending through every phase to a terminal
// status. The only error that surfaces is ErrRetriesExhausted (or a context
// cancellation); everything else is recovered into checkpoints and
// feedback.
func (e *Engine) Execute(ctx context.Context, run *domain.Run) error {
	now := time.Now()
	run.Status = domain.RunActive
	run.CurrentPhase = domain.Phases[0]
	run.StartedAt = &now
	e.saveRun(run, true)

	if _, err := e.checks.Append(run.ID, checkpoint.LabelStart, map[string]string{
		"goal":      run.Goal,
		"providers": strings.Join(run.Providers, ","),
	}); err != nil {
		return fmt.Errorf("recording start checkpoint: %w", err)
	}

	mem := feedback.NewMemory(run.ID)

	for _, phase := range domain.Phases {
		run.CurrentPhase = phase
		e.saveRun(run, false)

		if err := e.runPhase(ctx, run, phase, mem); err != nil {
			run.Status = domain.RunFailed
			e.finish(run)
			e.sink.Publish(events.Event{
				RunID:   run.ID,
				Phase:   phase,
				Status:  events.StatusRunFailed,
				Details: err.Error(),
				At:      time.Now(),
			})
			return err
		}
	}

	run.Status = domain.RunCompleted
	e.finish(run)
	if _, err := e.checks.Append(run.ID, checkpoint.LabelDone, map[string]string{"status": string(run.Status)}); err != nil {
		log.Printf("warning: done checkpoint for run %s: %v", run.ID, err)
	}
	e.sink.Publish(events.Event{RunID: run.ID, Status: events.StatusRunCompleted, At: time.Now()})
	return nil
}

// runPhase retries one phase up to the run's budget. Exactly Retries()
// attempts are made; a failing final attempt is terminal.
func (e *Engine) runPhase(ctx context.Context, run *domain.Run, phase domain.PhaseName, mem *feedback.Memory) error {
	maxAttempts := run.Retries()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.sink.Publish(events.Event{
			RunID: run.ID, Phase: phase, Status: events.StatusPhaseStarted,
			Attempt: attempt, At: time.Now(),
		})

		passed := e.attempt(ctx, run, phase, attempt, mem)

		entries := mem.Entries(phase)
		if _, err := e.checks.Append(run.ID, checkpoint.PhaseLabel(phase, attempt), phaseState(passed, attempt, entries)); err != nil {
			log.Printf("warning: phase checkpoint for run %s: %v", run.ID, err)
		}

		if passed {
			e.sink.Publish(events.Event{
				RunID: run.ID, Phase: phase, Status: events.StatusPhasePassed,
				Attempt: attempt, At: time.Now(),
			})
			mem.Clear(phase)
			return nil
		}

		e.sink.Publish(events.Event{
			RunID: run.ID, Phase: phase, Status: events.StatusPhaseFailed,
			Attempt: attempt, Details: lastFeedback(entries), At: time.Now(),
		})
	}

	if _, err := e.checks.Append(run.ID, checkpoint.ExhaustedLabel(phase), map[string]string{
		"attempts": strconv.Itoa(maxAttempts),
	}); err != nil {
		log.Printf("warning: exhausted checkpoint for run %s: %v", run.ID, err)
	}
	return fmt.Errorf("phase %s: %w after %d attempts", phase, domain.ErrRetriesExhausted, maxAttempts)
}

// attempt executes one round and evaluates the result, recording all
// feedback into mem. Returns whether the phase passed.
func (e *Engine) attempt(ctx context.Context, run *domain.Run, phase domain.PhaseName, attempt int, mem *feedback.Memory) bool {
	prompt := e.buildPrompt(run, phase, attempt, mem)

	result, err := e.coord.ExecuteRound(ctx, run, coordinator.PhaseContext{
		Phase:   phase,
		Attempt: attempt,
		Prompt:  prompt,
	})
	if err != nil || result.Decision == nil {
		// Total round failure is recorded as a failing evaluation so the
		// next attempt's prompt carries the error history. The workspace is
		// unchanged, so re-running evaluators would only duplicate the
		// previous attempt's feedback.
		mem.Record(phase, domain.FeedbackEntry{
			Attempt:   attempt,
			Evaluator: "round",
			Passed:    false,
			Feedback:  roundFailureFeedback(err),
		})
		return false
	}

	winner := result.Winner()
	ws := &workspace.Workspace{Path: run.WorkspacePath}
	if err := e.apply(ws, phase, winner); err != nil {
		mem.Record(phase, domain.FeedbackEntry{
			Attempt:   attempt,
			Evaluator: "apply",
			Passed:    false,
			Feedback:  fmt.Sprintf("applying output: %v", err),
		})
		return false
	}

	// All registered evaluators must pass; each keeps its own feedback
	// entry so retry prompts can attribute failures to their source.
	passed := true
	for _, ev := range e.evals.For(phase) {
		res := evaluator.Run(ctx, ev, ws, phase)
		mem.Record(phase, domain.FeedbackEntry{
			Attempt:   attempt,
			Evaluator: ev.Name(),
			Passed:    res.Passed,
			Score:     res.Score,
			Feedback:  res.Feedback,
		})
		if !res.Passed {
			passed = false
		}
	}
	return passed
}

// buildPrompt assembles the phase prompt. From attempt 2 on, the complete
// serialized failure history is injected so providers see every prior
// evaluator verdict, not just the latest.
func (e *Engine) buildPrompt(run *domain.Run, phase domain.PhaseName, attempt int, mem *feedback.Memory) string {
	var b strings.Builder
	b.WriteString(phasePreamble(phase))
	b.WriteString("\n\nTask goal:\n")
	b.WriteString(run.Goal)

	if attempt > 1 {
		if history := mem.Serialize(phase); history != "" {
			b.WriteString("\n\n")
			b.WriteString(history)
		}
	}
	return b.String()
}

func phasePreamble(phase domain.PhaseName) string {
	switch phase {
	case domain.PhaseDiscovery:
		return "Analyze the task and produce a concrete implementation plan: affected files, approach, and risks."
	case domain.PhaseCoding:
		return "Implement the task. Emit every file as a fenced code block opened with ```<lang> path=<relative/path>."
	case domain.PhaseVerification:
		return "Review the implemented code, fix remaining defects, and emit corrected files as fenced code blocks with path= markers."
	default:
		return ""
	}
}

func roundFailureFeedback(err error) string {
	if err == nil {
		return "all candidates failed"
	}
	// Coordinator errors already carry the "all candidates failed: ..." or
	// "judge selection failed: ..." summary
	return err.Error()
}

func phaseState(passed bool, attempt int, entries []domain.FeedbackEntry) map[string]string {
	state := map[string]string{
		"passed":  strconv.FormatBool(passed),
		"attempt": strconv.Itoa(attempt),
	}
	var parts []string
	for _, entry := range entries {
		if entry.Attempt != attempt {
			continue
		}
		verdict := "fail"
		if entry.Passed {
			verdict = "pass"
		}
		parts = append(parts, entry.Evaluator+"="+verdict)
	}
	state["evaluators"] = strings.Join(parts, ",")
	return state
}

func lastFeedback(entries []domain.FeedbackEntry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].Passed && entries[i].Feedback != "" {
			return entries[i].Feedback
		}
	}
	return ""
}

func (e *Engine) saveRun(run *domain.Run, create bool) {
	if e.runs == nil {
		return
	}
	var err error
	if create {
		err = e.runs.SaveRun(run)
	} else {
		err = e.runs.UpdateRun(run)
	}
	if err != nil {
		log.Printf("warning: persisting run %s: %v", run.ID, err)
	}
}

func (e *Engine) finish(run *domain.Run) {
	now := time.Now()
	run.FinishedAt = &now
	e.saveRun(run, false)
}
