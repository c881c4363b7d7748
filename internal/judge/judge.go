// Package judge selects the best candidate among a round's successful
// outputs. The production judge is itself a provider call; tests use a
// deterministic rule-based judge.
package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgedev/forge-orch/internal/provider"
)

// CandidateSummary is the judge's view of one successful candidate
type CandidateSummary struct {
	Provider string
	Text     string
}

// Selection is the judge's verdict
type Selection struct {
	Provider  string
	Score     *float64 // in [0,1] when reported
	Rationale string
	Model     string
	TraceID   string
}

// Judge scores and selects among candidates
type Judge interface {
	Select(ctx context.Context, candidates []CandidateSummary) (*Selection, error)
}

// ModelJudge asks a provider-backed model to pick the best candidate and
// parses its JSON verdict
type ModelJudge struct {
	client provider.Client
	model  string
}

// NewModelJudge creates a judge backed by the given client and model
func NewModelJudge(client provider.Client, model string) *ModelJudge {
	return &ModelJudge{client: client, model: model}
}

// Select prompts the judge model with every candidate and parses the verdict
func (j *ModelJudge) Select(ctx context.Context, candidates []CandidateSummary) (*Selection, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to judge")
	}

	res, err := j.client.Generate(ctx, provider.Request{
		Prompt: buildJudgePrompt(candidates),
		Config: provider.ModelConfig{Model: j.model},
	})
	if err != nil {
		return nil, fmt.Errorf("judge call: %w", err)
	}

	verdict, err := parseVerdict(res.Text)
	if err != nil {
		return nil, fmt.Errorf("judge verdict: %w", err)
	}

	// The verdict must name one of the candidates we showed it
	found := false
	for _, c := range candidates {
		if c.Provider == verdict.Provider {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("judge selected unknown provider %q", verdict.Provider)
	}

	verdict.Model = j.model
	verdict.TraceID = res.TraceID
	return verdict, nil
}

func buildJudgePrompt(candidates []CandidateSummary) string {
	var b strings.Builder
	b.WriteString("You are judging competing solutions to the same task. ")
	b.WriteString("Evaluate correctness, completeness and clarity, then answer with ")
	b.WriteString("ONLY a JSON object: {\"provider\": \"<name>\", \"score\": <0..1>, \"rationale\": \"<why>\"}\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "\n--- Candidate %d (provider: %s) ---\n%s\n", i+1, c.Provider, c.Text)
	}
	return b.String()
}
