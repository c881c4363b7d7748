// Package evaluator defines the deterministic checks that gate phase
// completion. Evaluators are read-only with respect to the workspace and
// idempotent; a crashing evaluator is converted into a failing evaluation,
// never a run failure.
package evaluator

import (
	"context"
	"fmt"

	"github.com/forgedev/forge-orch/internal/domain"
	"github.com/forgedev/forge-orch/internal/workspace"
)

// Result is one evaluator's verdict on the workspace
type Result struct {
	Passed   bool
	Score    *float64 // in [0,1] when the evaluator produces one
	Feedback string
}

// Evaluator checks a workspace after a phase attempt
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, ws *workspace.Workspace, phase domain.PhaseName) (Result, error)
}

// Run invokes an evaluator and converts errors and panics into a failing
// Result, so the caller never has to treat evaluation as fatal.
func Run(ctx context.Context, ev Evaluator, ws *workspace.Workspace, phase domain.PhaseName) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Passed: false, Feedback: fmt.Sprintf("evaluator %s panicked: %v", ev.Name(), r)}
		}
	}()

	res, err := ev.Evaluate(ctx, ws, phase)
	if err != nil {
		return Result{Passed: false, Feedback: err.Error()}
	}
	return res
}

// Registry maps phases to their registered evaluators
type Registry struct {
	byPhase map[domain.PhaseName][]Evaluator
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byPhase: make(map[domain.PhaseName][]Evaluator)}
}

// Register adds an evaluator for a phase, preserving registration order
func (r *Registry) Register(phase domain.PhaseName, ev Evaluator) {
	r.byPhase[phase] = append(r.byPhase[phase], ev)
}

// For returns the evaluators registered for a phase
func (r *Registry) For(phase domain.PhaseName) []Evaluator {
	return r.byPhase[phase]
}
