// Package provider abstracts the AI model backends that generate candidate
// solutions. Each client produces text from a prompt and reports usage and
// trace metadata; failures are returned as errors and recorded by the
// coordinator as failed candidates.
package provider

import (
	"context"
	"fmt"

	"github.com/forgedev/forge-orch/internal/domain"
)

// ModelConfig carries the recognized generation options
type ModelConfig struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Request is one generation request
type Request struct {
	Prompt string
	Config ModelConfig
	// WorkDir is the directory the provider process runs in, so tool use
	// operates on the run's workspace
	WorkDir string
}

// Result is a successful generation
type Result struct {
	Text         string
	Model        string
	TokensInput  int
	TokensOutput int
	CostUSD      float64
	TraceID      string
	ToolCalls    []domain.ToolCall
}

// Client generates text responses from prompts. Implementations must honor
// context cancellation; the coordinator applies per-call timeouts.
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Error wraps a provider failure with its provider name so failed
// candidates can be attributed
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
