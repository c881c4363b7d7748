// Package workspace manages the working directory a run owns for its
// lifetime. The pipeline materializes winning candidate output here and
// evaluators read it; only the active phase attempt may mutate it.
package workspace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forgedev/forge-orch/internal/domain"
)

// Workspace is an opaque handle to a run's working directory
type Workspace struct {
	Path string
}

// Manager creates and removes per-run workspaces under a base directory
type Manager struct {
	baseDir string
}

// NewManager creates a Manager rooted at baseDir
func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

// Create makes a fresh workspace directory for a run
func (m *Manager) Create(runID string) (*Workspace, error) {
	path := filepath.Join(m.baseDir, runID)
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace dir: %w", err)
	}
	return &Workspace{Path: path}, nil
}

// Open wraps an existing directory as a workspace
func (m *Manager) Open(path string) (*Workspace, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", path)
	}
	return &Workspace{Path: path}, nil
}

// Remove deletes a run's workspace
func (m *Manager) Remove(ws *Workspace) error {
	if ws == nil || ws.Path == "" {
		return nil
	}
	// Refuse to remove anything outside the managed base
	rel, err := filepath.Rel(m.baseDir, ws.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("workspace %s is outside %s", ws.Path, m.baseDir)
	}
	return os.RemoveAll(ws.Path)
}

// ApplyOutput materializes a winning candidate's output into the workspace.
// File-fenced code blocks are written to their declared paths; output with
// no file fences lands in a notes file for the phase so discovery text is
// still visible to later phases.
func ApplyOutput(ws *Workspace, phase domain.PhaseName, cand *domain.Candidate) error {
	if ws == nil {
		return fmt.Errorf("nil workspace")
	}
	if cand == nil || !cand.Succeeded() {
		return fmt.Errorf("cannot apply failed candidate")
	}

	files := ExtractFiles(cand.Output)
	if len(files) == 0 {
		notes := filepath.Join(ws.Path, fmt.Sprintf(".forge-%s.md", phase))
		return os.WriteFile(notes, []byte(cand.Output), 0644)
	}

	for path, content := range files {
		full := filepath.Join(ws.Path, path)
		// Never write outside the workspace
		rel, err := filepath.Rel(ws.Path, full)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("candidate path %q escapes workspace", path)
		}
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// RunTooling executes an evaluator command inside the workspace and returns
// its combined output
func RunTooling(ctx context.Context, ws *Workspace, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = ws.Path
	out, err := cmd.CombinedOutput()
	return string(out), err
}
