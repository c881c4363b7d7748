package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/forgedev/forge-orch/internal/batch"
	"github.com/forgedev/forge-orch/internal/config"
	"github.com/forgedev/forge-orch/internal/coordinator"
	"github.com/forgedev/forge-orch/internal/domain"
	"github.com/forgedev/forge-orch/internal/evaluator"
	"github.com/forgedev/forge-orch/internal/events"
	"github.com/forgedev/forge-orch/internal/judge"
	"github.com/forgedev/forge-orch/internal/pipeline"
	"github.com/forgedev/forge-orch/internal/provider"
	"github.com/forgedev/forge-orch/internal/runstore"
	"github.com/forgedev/forge-orch/internal/watch"
	"github.com/forgedev/forge-orch/internal/workspace"
	"github.com/forgedev/forge-orch/tui"
	"github.com/forgedev/forge-orch/web/api"
)

var (
	runGoalFile   string
	runProviders  []string
	runMaxRetries int
	listStatus    string
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run [GOAL]",
		Short: "Execute one goal through all phases",
		RunE:  runRun,
	}
	runCmd.Flags().StringVarP(&runGoalFile, "file", "f", "", "read the goal from a markdown file")
	runCmd.Flags().StringSliceVar(&runProviders, "providers", nil, "providers to fan out to (default: all configured)")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", 0, "per-phase attempt budget (default: config)")
	rootCmd.AddCommand(runCmd)

	// runs command
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs",
		RunE:  runRuns,
	}
	runsCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	rootCmd.AddCommand(runsCmd)

	// status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show run counts",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	// checkpoints command
	checkpointsCmd := &cobra.Command{
		Use:   "checkpoints RUN",
		Short: "Show a run's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheckpoints,
	}
	rootCmd.AddCommand(checkpointsCmd)

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)

	// watch command
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the goals directory and launch runs",
		RunE:  runWatch,
	}
	rootCmd.AddCommand(watchCmd)

	// batch command
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Launch queued goals on the configured cron schedule",
		RunE:  runBatch,
	}
	rootCmd.AddCommand(batchCmd)

	// tui command
	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the run monitor",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func openStore(cfg *config.Config) (*runstore.Store, error) {
	return runstore.New(cfg.General.DatabasePath)
}

// buildEngine wires the full pipeline from configuration
func buildEngine(cfg *config.Config, store *runstore.Store, sink events.Sink) (*pipeline.Engine, error) {
	providers := make([]coordinator.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		client, err := provider.New(pc.Name, pc.Family)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		providers = append(providers, coordinator.Provider{
			Client: client,
			Config: provider.ModelConfig{
				Model:       pc.Model,
				Temperature: pc.Temperature,
				MaxTokens:   pc.MaxTokens,
			},
		})
	}

	judgeClient, err := provider.New("judge", cfg.Judge.Family)
	if err != nil {
		return nil, fmt.Errorf("judge: %w", err)
	}

	coord := coordinator.New(providers, judge.NewModelJudge(judgeClient, cfg.Judge.Model), store, store, coordinator.Config{
		ProviderTimeout: config.ParseTimeout(cfg.General.ProviderTimeout, 10*time.Minute),
		JudgeTimeout:    config.ParseTimeout(cfg.General.JudgeTimeout, 2*time.Minute),
	})

	return pipeline.New(coord, buildEvaluators(cfg), store, sink, store), nil
}

// buildEvaluators registers the configured commands: lint and typecheck
// gate the coding phase, the test run gates verification
func buildEvaluators(cfg *config.Config) *evaluator.Registry {
	timeout := config.ParseTimeout(cfg.Evaluators.Timeout, 5*time.Minute)

	reg := evaluator.NewRegistry()
	reg.Register(domain.PhaseCoding, evaluator.NewLint(cfg.Evaluators.Lint, timeout))
	reg.Register(domain.PhaseCoding, evaluator.NewTypeCheck(cfg.Evaluators.TypeCheck, timeout))
	reg.Register(domain.PhaseVerification, evaluator.NewTestRun(cfg.Evaluators.Tests, timeout))
	return reg
}

// launchRun creates a run with its own workspace and drives it to a
// terminal status
func launchRun(ctx context.Context, cfg *config.Config, engine *pipeline.Engine, store *runstore.Store, goal watch.Goal) error {
	runID := uuid.NewString()

	ws, err := workspace.NewManager(cfg.General.WorkspaceDir).Create(runID)
	if err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}

	providers := goal.Providers
	if len(providers) == 0 {
		providers = cfg.ProviderNames()
	}
	maxRetries := goal.MaxRetries
	if maxRetries == 0 {
		maxRetries = cfg.General.MaxRetries
	}

	run := &domain.Run{
		ID:            runID,
		Goal:          goal.Text,
		Providers:     providers,
		Status:        domain.RunPending,
		WorkspacePath: ws.Path,
		MaxRetries:    maxRetries,
		CreatedAt:     time.Now(),
	}
	if err := store.SaveRun(run); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	fmt.Printf("Run %s started (workspace %s)\n", runID, ws.Path)
	if err := engine.Execute(ctx, run); err != nil {
		return fmt.Errorf("run %s failed: %w", runID, err)
	}
	fmt.Printf("Run %s completed\n", runID)
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var goal watch.Goal
	switch {
	case runGoalFile != "":
		goal, err = watch.ParseGoalFile(runGoalFile)
		if err != nil {
			return err
		}
	case len(args) > 0:
		goal = watch.Goal{Text: strings.Join(args, " ")}
	default:
		return fmt.Errorf("a goal is required: pass it as an argument or with --file")
	}

	if len(runProviders) > 0 {
		goal.Providers = runProviders
	}
	if runMaxRetries > 0 {
		goal.MaxRetries = runMaxRetries
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := buildEngine(cfg, store, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return launchRun(ctx, cfg, engine, store, goal)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(runstore.ListOptions{Status: domain.RunStatus(listStatus)})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPHASE\tCREATED\tGOAL")
	for _, r := range runs {
		goal := strings.ReplaceAll(r.Goal, "\n", " ")
		if len(goal) > 60 {
			goal = goal[:59] + "…"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.CurrentPhase, humanize.Time(r.CreatedAt), goal)
	}
	w.Flush()

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(runstore.ListOptions{})
	if err != nil {
		return err
	}

	var pending, active, completed, failed int
	for _, r := range runs {
		switch r.Status {
		case domain.RunPending:
			pending++
		case domain.RunActive:
			active++
		case domain.RunCompleted:
			completed++
		case domain.RunFailed:
			failed++
		}
	}

	fmt.Printf("Runs: %d total | %d pending | %d active | %d completed | %d failed\n",
		len(runs), pending, active, completed, failed)

	return nil
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	checks, err := store.List(args[0])
	if err != nil {
		return err
	}
	if len(checks) == 0 {
		fmt.Println("No checkpoints for run", args[0])
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tLABEL\tWHEN\tSTATE")
	for _, c := range checks {
		parts := make([]string, 0, len(c.State))
		for k, v := range c.State {
			if len(v) > 40 {
				v = v[:40] + "…"
			}
			parts = append(parts, k+"="+v)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			c.Seq, c.Label, humanize.Time(c.CreatedAt), strings.Join(parts, " "))
	}
	w.Flush()

	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := api.NewServer(store, addr)

	fmt.Printf("Listening on http://%s\n", addr)
	return server.Start()
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := api.NewServer(store, addr)

	engine, err := buildEngine(cfg, store, server)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launch := func(ctx context.Context, goal watch.Goal) {
		if err := launchRun(ctx, cfg, engine, store, goal); err != nil {
			log.Printf("watch: %v", err)
		}
	}

	watcher, err := watch.NewGoalWatcher(cfg.General.GoalsDir, func(goal watch.Goal) {
		go launch(ctx, goal)
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Printf("api server: %v", err)
		}
	}()

	fmt.Printf("Watching %s (API on http://%s)\n", cfg.General.GoalsDir, addr)
	<-ctx.Done()
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := buildEngine(cfg, store, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launch := func(ctx context.Context, goal watch.Goal) {
		if err := launchRun(ctx, cfg, engine, store, goal); err != nil {
			log.Printf("batch: %v", err)
		}
	}

	scheduler, err := batch.NewScheduler(cfg.General.GoalsDir, cfg.Batch.Schedule, cfg.Batch.MaxConcurrent, launch)
	if err != nil {
		return err
	}

	fmt.Printf("Draining %s on schedule %q (next: %s)\n",
		cfg.General.GoalsDir, cfg.Batch.Schedule, humanize.Time(scheduler.NextRun()))
	scheduler.Start(ctx)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	model := tui.NewModel(store, nil)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
