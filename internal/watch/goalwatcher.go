// Package watch monitors a goals directory for new task files and hands
// them to the pipeline. A goal file is markdown with optional YAML
// frontmatter configuring the run.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Goal is a parsed goal file
type Goal struct {
	Path       string
	Text       string
	Providers  []string
	MaxRetries int
}

// goalFrontmatter is the YAML frontmatter a goal file may carry
type goalFrontmatter struct {
	Providers  []string `yaml:"providers"`
	MaxRetries int      `yaml:"max_retries"`
}

// GoalCallback is called for each newly discovered goal file
type GoalCallback func(goal Goal)

// GoalWatcher monitors a directory for new .md goal files
type GoalWatcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	callback GoalCallback
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	seen    map[string]struct{}
}

// NewGoalWatcher creates a watcher over dir. The directory is created if
// missing.
func NewGoalWatcher(dir string, callback GoalCallback) (*GoalWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating goals dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &GoalWatcher{
		dir:      dir,
		watcher:  watcher,
		callback: callback,
		debounce: 500 * time.Millisecond, // goal files are often written in chunks
		pending:  make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}, nil
}

// Start watches until the context is cancelled. Existing goal files are
// dispatched first so a restart never drops queued work.
func (w *GoalWatcher) Start(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if isGoalFile(entry.Name()) {
			w.enqueue(filepath.Join(w.dir, entry.Name()))
		}
	}

	go w.loop(ctx)
	return nil
}

func (w *GoalWatcher) loop(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isGoalFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.enqueue(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("goal watcher: %v", err)
		}
	}
}

// enqueue debounces rapid writes to the same file before dispatch
func (w *GoalWatcher) enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *GoalWatcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		if _, done := w.seen[p]; !done {
			paths = append(paths, p)
			w.seen[p] = struct{}{}
		}
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for _, path := range paths {
		goal, err := ParseGoalFile(path)
		if err != nil {
			log.Printf("goal watcher: skipping %s: %v", path, err)
			continue
		}
		w.callback(goal)
	}
}

// ParseGoalFile reads a goal file, splitting YAML frontmatter from the
// goal text
func ParseGoalFile(path string) (Goal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Goal{}, err
	}

	goal := Goal{Path: path}
	content := string(data)

	if strings.HasPrefix(content, "---\n") {
		rest := content[4:]
		if end := strings.Index(rest, "\n---"); end != -1 {
			var fm goalFrontmatter
			if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
				return Goal{}, fmt.Errorf("parsing frontmatter: %w", err)
			}
			goal.Providers = fm.Providers
			goal.MaxRetries = fm.MaxRetries
			content = strings.TrimPrefix(rest[end+4:], "\n")
		}
	}

	goal.Text = strings.TrimSpace(content)
	if goal.Text == "" {
		return Goal{}, fmt.Errorf("empty goal")
	}
	return goal, nil
}

func isGoalFile(name string) bool {
	return strings.HasSuffix(name, ".md") && !strings.HasPrefix(name, ".")
}
