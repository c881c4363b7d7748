// End-to-end coverage: the real SQLite store, coordinator and phase state
// machine wired together, with deterministic provider and judge doubles.
package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/forgedev/forge-orch/internal/checkpoint"
	"github.com/forgedev/forge-orch/internal/coordinator"
	"github.com/forgedev/forge-orch/internal/domain"
	"github.com/forgedev/forge-orch/internal/evaluator"
	"github.com/forgedev/forge-orch/internal/events"
	"github.com/forgedev/forge-orch/internal/judge"
	"github.com/forgedev/forge-orch/internal/pipeline"
	"github.com/forgedev/forge-orch/internal/provider"
	"github.com/forgedev/forge-orch/internal/runstore"
	"github.com/forgedev/forge-orch/internal/workspace"
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
	return &provider.Result{Text: f.text, Model: "fake"}, nil
}

// candidateText yields output the workspace applier materializes as a file
func candidateText(name string) string {
	return fmt.Sprintf("Here is my solution.\n\n```go path=%s.go\npackage main\n```\n", name)
}

func newStore(t *testing.T) *runstore.Store {
	t.Helper()
	store, err := runstore.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newEngine(t *testing.T, store *runstore.Store, clients []*fakeClient, sink events.Sink) *pipeline.Engine {
	t.Helper()
	providers := make([]coordinator.Provider, len(clients))
	for i, c := range clients {
		providers[i] = coordinator.Provider{Client: c}
	}
	score := 0.9
	j := &judge.StubJudge{Prefer: clients[0].name, FixedScore: &score}
	coord := coordinator.New(providers, j, store, store, coordinator.Config{
		ProviderTimeout: time.Minute,
		JudgeTimeout:    time.Minute,
	})

	reg := evaluator.NewRegistry()
	for _, phase := range domain.Phases {
		reg.Register(phase, evaluator.NewCommand("noop", []string{"true"}, time.Minute))
	}

	return pipeline.New(coord, reg, store, sink, store)
}

func newRun(t *testing.T, store *runstore.Store, providers []string) *domain.Run {
	t.Helper()
	ws, err := workspace.NewManager(t.TempDir()).Create("run-e2e")
	if err != nil {
		t.Fatal(err)
	}
	run := &domain.Run{
		ID:            "run-e2e",
		Goal:          "build a hello world",
		Providers:     providers,
		Status:        domain.RunPending,
		WorkspacePath: ws.Path,
		MaxRetries:    3,
		CreatedAt:     time.Now(),
	}
	if err := store.SaveRun(run); err != nil {
		t.Fatal(err)
	}
	return run
}

func TestFullPipelineCompletes(t *testing.T) {
	store := newStore(t)
	clients := []*fakeClient{
		{name: "alpha", text: candidateText("alpha")},
		{name: "beta", text: candidateText("beta")},
	}
	sink := events.NewChanSink(64)
	engine := newEngine(t, store, clients, sink)
	run := newRun(t, store, []string{"alpha", "beta"})

	if err := engine.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.RunCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}

	// one round per phase: 2 candidates + 1 decision + 1 phase marker,
	// bracketed by start and done
	checks, err := store.List(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(checks) != 14 {
		t.Fatalf("checkpoint count = %d, want 14", len(checks))
	}
	for i, c := range checks {
		if c.Seq != i+1 {
			t.Errorf("Seq[%d] = %d, want %d", i, c.Seq, i+1)
		}
	}
	if checks[0].Label != checkpoint.LabelStart {
		t.Errorf("first label = %s, want %s", checks[0].Label, checkpoint.LabelStart)
	}
	if checks[len(checks)-1].Label != checkpoint.LabelDone {
		t.Errorf("last label = %s, want %s", checks[len(checks)-1].Label, checkpoint.LabelDone)
	}

	candidates, err := store.ListCandidates(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 6 {
		t.Errorf("candidate count = %d, want 6", len(candidates))
	}
	decisions, err := store.ListDecisions(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 3 {
		t.Errorf("decision count = %d, want 3", len(decisions))
	}

	if status := pipeline.Replay(checks); status != domain.RunCompleted {
		t.Errorf("Replay = %s, want completed", status)
	}

	var last events.Event
	for len(sink.C) > 0 {
		last = <-sink.C
	}
	if last.Status != events.StatusRunCompleted {
		t.Errorf("final event = %s, want run_completed", last.Status)
	}
}

func TestFullPipelineAllProvidersFail(t *testing.T) {
	store := newStore(t)
	clients := []*fakeClient{
		{name: "alpha", err: fmt.Errorf("model overloaded")},
		{name: "beta", err: fmt.Errorf("billing error")},
	}
	engine := newEngine(t, store, clients, nil)
	run := newRun(t, store, []string{"alpha", "beta"})

	err := engine.Execute(context.Background(), run)
	if err == nil {
		t.Fatal("expected failure when every provider errors")
	}
	if !strings.Contains(err.Error(), "discovery") {
		t.Errorf("error = %v, want discovery exhaustion", err)
	}

	got, _ := store.GetRun(run.ID)
	if got.Status != domain.RunFailed {
		t.Errorf("Status = %s, want failed", got.Status)
	}

	// every failed attempt is still a durable candidate
	candidates, _ := store.ListCandidates(run.ID)
	if len(candidates) != 6 {
		t.Errorf("candidate count = %d, want 6 (2 providers x 3 attempts)", len(candidates))
	}
	for _, c := range candidates {
		if c.Succeeded() {
			t.Errorf("candidate %s should be failed", c.ID)
		}
	}

	checks, _ := store.List(run.ID)
	if status := pipeline.Replay(checks); status != domain.RunFailed {
		t.Errorf("Replay = %s, want failed", status)
	}
	last := checks[len(checks)-1]
	if last.Label != "phase:discovery:exhausted" {
		t.Errorf("terminal label = %s, want phase:discovery:exhausted", last.Label)
	}
}

func TestFullPipelineWinnerMaterialized(t *testing.T) {
	store := newStore(t)
	clients := []*fakeClient{
		{name: "alpha", text: candidateText("winner")},
		{name: "beta", text: candidateText("loser")},
	}
	engine := newEngine(t, store, clients, nil)
	run := newRun(t, store, []string{"alpha", "beta"})

	if err := engine.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	ws := &workspace.Workspace{Path: run.WorkspacePath}
	if _, err := workspace.RunTooling(context.Background(), ws, []string{"test", "-f", "winner.go"}); err != nil {
		t.Errorf("winner.go not materialized in workspace: %v", err)
	}
}
