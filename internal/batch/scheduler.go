// Package batch launches queued goal files on a cron schedule, so large
// generation jobs can run off-hours instead of on file arrival.
package batch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/forgedev/forge-orch/internal/watch"
)

// Launcher executes one goal through the pipeline
type Launcher func(ctx context.Context, goal watch.Goal)

// Scheduler drains a goals directory whenever its cron schedule fires
type Scheduler struct {
	goalsDir      string
	schedule      cron.Schedule
	launch        Launcher
	maxConcurrent int

	mu      sync.Mutex
	lastRun time.Time
	running bool
	done    map[string]struct{}
}

// ParseCron parses a standard 5-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// NewScheduler creates a scheduler for the given cron expression
func NewScheduler(goalsDir, cronExpr string, maxConcurrent int, launch Launcher) (*Scheduler, error) {
	sched, err := ParseCron(cronExpr)
	if err != nil {
		return nil, err
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		goalsDir:      goalsDir,
		schedule:      sched,
		launch:        launch,
		maxConcurrent: maxConcurrent,
		done:          make(map[string]struct{}),
	}, nil
}

// NextRun returns the next scheduled drain time
func (s *Scheduler) NextRun() time.Time {
	return s.schedule.Next(time.Now())
}

// ShouldRun reports whether a drain is due
func (s *Scheduler) ShouldRun(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	lastRun := s.lastRun
	if lastRun.IsZero() {
		lastRun = now.Add(-24 * time.Hour)
	}
	return now.After(s.schedule.Next(lastRun))
}

// Start polls the schedule until the context is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.ShouldRun(now) {
				s.drain(ctx, now)
			}
		}
	}
}

// drain launches every pending goal file, maxConcurrent at a time
func (s *Scheduler) drain(ctx context.Context, now time.Time) {
	s.mu.Lock()
	s.running = true
	s.lastRun = now
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	goals := s.pending()
	if len(goals) == 0 {
		return
	}
	log.Printf("batch: launching %d queued goals", len(goals))

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	for _, goal := range goals {
		if ctx.Err() != nil {
			break
		}
		goal := goal
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.launch(ctx, goal)
		}()
	}
	wg.Wait()
}

// pending lists goal files not yet launched
func (s *Scheduler) pending() []watch.Goal {
	entries, err := os.ReadDir(s.goalsDir)
	if err != nil {
		log.Printf("batch: reading goals dir: %v", err)
		return nil
	}

	var goals []watch.Goal
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(s.goalsDir, name)
		if _, ok := s.done[path]; ok {
			continue
		}
		goal, err := watch.ParseGoalFile(path)
		if err != nil {
			log.Printf("batch: skipping %s: %v", path, err)
			continue
		}
		s.done[path] = struct{}{}
		goals = append(goals, goal)
	}
	return goals
}
