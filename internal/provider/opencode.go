package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/uuid"
)

// OpenCodeClient shells out to the opencode CLI. OpenCode prints plain text
// by default (its JSON format hangs in non-interactive mode), so the whole
// stdout is the candidate text.
type OpenCodeClient struct {
	name   string
	binary string
}

// NewOpenCodeClient creates a client named name that invokes opencode
func NewOpenCodeClient(name string) *OpenCodeClient {
	return &OpenCodeClient{name: name, binary: "opencode"}
}

func (c *OpenCodeClient) Name() string {
	return c.name
}

// Generate runs one opencode invocation
func (c *OpenCodeClient) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Prompt == "" {
		return nil, &Error{Provider: c.name, Err: fmt.Errorf("empty prompt")}
	}

	args := []string{"run"}
	if req.Config.Model != "" {
		args = append(args, "-m", req.Config.Model)
	}
	args = append(args, req.Prompt)

	cmd := exec.CommandContext(ctx, c.binary, args...)
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := extractOpenCodeError(stdout.String()); msg != "" {
			return nil, &Error{Provider: c.name, Err: fmt.Errorf("%v: %s", err, msg)}
		}
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return nil, &Error{Provider: c.name, Err: fmt.Errorf("%v: %s", err, s)}
		}
		return nil, &Error{Provider: c.name, Err: err}
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return nil, &Error{Provider: c.name, Err: fmt.Errorf("empty output")}
	}

	return &Result{
		Text:    text,
		Model:   req.Config.Model,
		TraceID: uuid.NewString(),
	}, nil
}

// extractOpenCodeError looks for OpenCode's JSON error lines, e.g.
// {"type":"error","error":{"name":...,"data":{"message":...}}}
func extractOpenCodeError(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0 && i >= len(lines)-20; i-- {
		line := lines[i]
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var ocErr struct {
			Type  string `json:"type"`
			Error struct {
				Name string `json:"name"`
				Data struct {
					Message string `json:"message"`
				} `json:"data"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &ocErr); err == nil && ocErr.Type == "error" {
			msg := ocErr.Error.Data.Message
			if msg == "" {
				msg = ocErr.Error.Name
			}
			if strings.Contains(msg, "CreditsError") || strings.Contains(msg, "No payment method") {
				return "billing error: no payment method configured"
			}
			if msg != "" {
				return msg
			}
		}
	}
	return ""
}
