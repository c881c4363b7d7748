package evaluator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgedev/forge-orch/internal/domain"
	"github.com/forgedev/forge-orch/internal/workspace"
)

// maxFeedbackLen bounds tool output carried into feedback memory so retry
// prompts stay within model limits
const maxFeedbackLen = 8000

// CommandEvaluator runs a workspace tool and passes when it exits zero.
// Lint, type-check and test-run are all instances of this with different
// argv.
type CommandEvaluator struct {
	name    string
	argv    []string
	timeout time.Duration
}

// NewCommand creates a command-backed evaluator
func NewCommand(name string, argv []string, timeout time.Duration) *CommandEvaluator {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &CommandEvaluator{name: name, argv: argv, timeout: timeout}
}

func (e *CommandEvaluator) Name() string {
	return e.name
}

// Evaluate runs the command inside the workspace. Non-zero exit is a failed
// evaluation with the tool output as feedback, not an error.
func (e *CommandEvaluator) Evaluate(ctx context.Context, ws *workspace.Workspace, phase domain.PhaseName) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := workspace.RunTooling(ctx, ws, e.argv)
	out = strings.TrimSpace(out)
	if len(out) > maxFeedbackLen {
		out = out[:maxFeedbackLen] + "\n... (output truncated)"
	}

	if ctx.Err() == context.DeadlineExceeded {
		return Result{
			Passed:   false,
			Feedback: fmt.Sprintf("%s timed out after %s\n%s", strings.Join(e.argv, " "), e.timeout, out),
		}, nil
	}
	if err != nil {
		feedback := out
		if feedback == "" {
			feedback = err.Error()
		}
		return Result{Passed: false, Feedback: feedback}, nil
	}

	return Result{Passed: true, Feedback: out}, nil
}

// Built-in evaluator constructors. The argv defaults mirror how a Go
// workspace is checked; configs can override them per phase.

// NewLint checks vet-style issues
func NewLint(argv []string, timeout time.Duration) *CommandEvaluator {
	if len(argv) == 0 {
		argv = []string{"go", "vet", "./..."}
	}
	return NewCommand("lint", argv, timeout)
}

// NewTypeCheck compiles the workspace
func NewTypeCheck(argv []string, timeout time.Duration) *CommandEvaluator {
	if len(argv) == 0 {
		argv = []string{"go", "build", "./..."}
	}
	return NewCommand("typecheck", argv, timeout)
}

// NewTestRun runs the workspace test suite
func NewTestRun(argv []string, timeout time.Duration) *CommandEvaluator {
	if len(argv) == 0 {
		argv = []string{"go", "test", "./..."}
	}
	return NewCommand("tests", argv, timeout)
}
