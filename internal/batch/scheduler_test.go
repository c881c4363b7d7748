package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/forgedev/forge-orch/internal/watch"
)

func writeGoal(t *testing.T, dir, name, text string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseCron(t *testing.T) {
	if _, err := ParseCron("0 2 * * *"); err != nil {
		t.Fatalf("valid expression rejected: %v", err)
	}
	if _, err := ParseCron("not a cron"); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}

func TestShouldRun(t *testing.T) {
	s, err := NewScheduler(t.TempDir(), "0 2 * * *", 1, func(context.Context, watch.Goal) {})
	if err != nil {
		t.Fatal(err)
	}

	// never run before: due as long as 02:00 passed in the last day
	at3am := time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC)
	if !s.ShouldRun(at3am) {
		t.Error("expected due on first check after schedule time")
	}

	s.mu.Lock()
	s.lastRun = at3am
	s.mu.Unlock()
	if s.ShouldRun(at3am.Add(time.Hour)) {
		t.Error("should not be due an hour after a run")
	}
	if !s.ShouldRun(at3am.Add(24 * time.Hour)) {
		t.Error("expected due the next day")
	}
}

func TestShouldRunWhileRunning(t *testing.T) {
	s, err := NewScheduler(t.TempDir(), "* * * * *", 1, func(context.Context, watch.Goal) {})
	if err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	if s.ShouldRun(time.Now()) {
		t.Error("should not be due while a drain is in progress")
	}
}

func TestDrainLaunchesEachGoalOnce(t *testing.T) {
	dir := t.TempDir()
	writeGoal(t, dir, "one.md", "build a parser")
	writeGoal(t, dir, "two.md", "build a formatter")
	writeGoal(t, dir, "notes.txt", "ignored")
	writeGoal(t, dir, ".hidden.md", "ignored")

	var mu sync.Mutex
	launched := map[string]int{}
	s, err := NewScheduler(dir, "* * * * *", 2, func(_ context.Context, g watch.Goal) {
		mu.Lock()
		launched[filepath.Base(g.Path)]++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	s.drain(context.Background(), time.Now())
	s.drain(context.Background(), time.Now())

	mu.Lock()
	defer mu.Unlock()
	if len(launched) != 2 {
		t.Fatalf("expected 2 goals launched, got %v", launched)
	}
	for name, n := range launched {
		if n != 1 {
			t.Errorf("goal %s launched %d times", name, n)
		}
	}
}

func TestDrainBoundedConcurrency(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md", "c.md", "d.md"} {
		writeGoal(t, dir, name, "goal")
	}

	var mu sync.Mutex
	active, peak := 0, 0
	s, err := NewScheduler(dir, "* * * * *", 2, func(context.Context, watch.Goal) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	s.drain(context.Background(), time.Now())

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("concurrency peaked at %d, want at most 2", peak)
	}
}
