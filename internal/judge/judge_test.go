package judge

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/forgedev/forge-orch/internal/provider"
)

type fakeClient struct {
	name string
	text string
	err  error
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Generate(ctx context.Context, req provider.Request) (*provider.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Result{Text: f.text, TraceID: "trace-1"}, nil
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		provider string
		wantErr  bool
	}{
		{
			name:     "bare json",
			text:     `{"provider":"claude-a","score":0.9,"rationale":"most complete"}`,
			provider: "claude-a",
		},
		{
			name:     "fenced json",
			text:     "Here is my verdict:\n```json\n{\"provider\": \"opencode-b\", \"rationale\": \"cleaner\"}\n```",
			provider: "opencode-b",
		},
		{
			name:     "braces in rationale",
			text:     `{"provider":"a","rationale":"uses map{} literal"}`,
			provider: "a",
		},
		{name: "no json", text: "I cannot decide", wantErr: true},
		{name: "missing provider", text: `{"score":0.5}`, wantErr: true},
		{name: "score out of range", text: `{"provider":"a","score":1.5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := parseVerdict(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatal("want error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if sel.Provider != tt.provider {
				t.Errorf("Provider = %q, want %q", sel.Provider, tt.provider)
			}
		})
	}
}

func TestModelJudge_Select(t *testing.T) {
	client := &fakeClient{name: "judge", text: `{"provider":"b","score":0.8,"rationale":"passes more cases"}`}
	j := NewModelJudge(client, "judge-model")

	sel, err := j.Select(context.Background(), []CandidateSummary{
		{Provider: "a", Text: "solution a"},
		{Provider: "b", Text: "solution b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Provider != "b" {
		t.Errorf("Provider = %q, want b", sel.Provider)
	}
	if sel.Score == nil || *sel.Score != 0.8 {
		t.Errorf("Score = %v, want 0.8", sel.Score)
	}
	if sel.Model != "judge-model" || sel.TraceID != "trace-1" {
		t.Errorf("Model/TraceID = %q/%q", sel.Model, sel.TraceID)
	}
}

func TestModelJudge_UnknownProvider(t *testing.T) {
	client := &fakeClient{name: "judge", text: `{"provider":"nobody","rationale":"?"}`}
	j := NewModelJudge(client, "judge-model")

	_, err := j.Select(context.Background(), []CandidateSummary{{Provider: "a", Text: "x"}})
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("err = %v, want unknown provider", err)
	}
}

func TestModelJudge_ClientError(t *testing.T) {
	client := &fakeClient{name: "judge", err: fmt.Errorf("boom")}
	j := NewModelJudge(client, "judge-model")

	if _, err := j.Select(context.Background(), []CandidateSummary{{Provider: "a"}}); err == nil {
		t.Error("want error from failing client")
	}
}

func TestStubJudge(t *testing.T) {
	score := 0.9
	s := &StubJudge{Prefer: "b", FixedScore: &score}

	sel, err := s.Select(context.Background(), []CandidateSummary{
		{Provider: "a"}, {Provider: "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Provider != "b" || *sel.Score != 0.9 {
		t.Errorf("selection = %+v", sel)
	}

	// prefer absent -> first candidate
	sel, _ = s.Select(context.Background(), []CandidateSummary{{Provider: "x"}})
	if sel.Provider != "x" {
		t.Errorf("fallback selection = %q, want x", sel.Provider)
	}
}

func TestBuildJudgePrompt(t *testing.T) {
	prompt := buildJudgePrompt([]CandidateSummary{
		{Provider: "a", Text: "first"},
		{Provider: "b", Text: "second"},
	})
	for _, want := range []string{"provider: a", "provider: b", "first", "second", "JSON"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
