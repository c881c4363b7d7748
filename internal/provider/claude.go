package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/forgedev/forge-orch/internal/domain"
)

// forgeNamespace is a fixed UUID namespace for generating deterministic
// trace IDs, so re-running the same prompt in the same run correlates
var forgeNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// ClaudeClient shells out to the claude CLI in non-interactive mode and
// parses the stream-json output for text, tool calls and token usage
type ClaudeClient struct {
	name   string
	binary string
}

// NewClaudeClient creates a client named name that invokes the claude binary
func NewClaudeClient(name string) *ClaudeClient {
	return &ClaudeClient{name: name, binary: "claude"}
}

func (c *ClaudeClient) Name() string {
	return c.name
}

// Generate runs one claude invocation and collects the streamed result
func (c *ClaudeClient) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Prompt == "" {
		return nil, &Error{Provider: c.name, Err: fmt.Errorf("empty prompt")}
	}

	args := []string{
		"--print",
		"--verbose",
		"--dangerously-skip-permissions",
		"--output-format", "stream-json",
	}
	if req.Config.Model != "" {
		args = append(args, "--model", req.Config.Model)
	}
	args = append(args, "-p", req.Prompt)

	cmd := exec.CommandContext(ctx, c.binary, args...)
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	res := parseStream(stdout.Bytes())
	res.Model = req.Config.Model
	if res.TraceID == "" {
		res.TraceID = uuid.NewSHA1(forgeNamespace, stdout.Bytes()).String()
	}

	if runErr != nil {
		msg := extractStreamError(stdout.Bytes())
		if msg == "" {
			msg = strings.TrimSpace(stderr.String())
		}
		if msg == "" {
			msg = runErr.Error()
		}
		return nil, &Error{Provider: c.name, Err: fmt.Errorf("%v: %s", runErr, msg)}
	}
	if res.Text == "" {
		return nil, &Error{Provider: c.name, Err: fmt.Errorf("no result message in output")}
	}
	return res, nil
}

// streamMessage covers the stream-json message shapes we care about
type streamMessage struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Result    string `json:"result,omitempty"`
	Usage     struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	CostUSD float64 `json:"cost_usd,omitempty"`
	Message struct {
		Content []struct {
			Type  string          `json:"type,omitempty"`
			Text  string          `json:"text,omitempty"`
			Name  string          `json:"name,omitempty"`
			Input json.RawMessage `json:"input,omitempty"`
		} `json:"content,omitempty"`
	} `json:"message,omitempty"`
}

// parseStream walks stream-json lines collecting assistant text, tool calls
// and the final result message's usage
func parseStream(output []byte) *Result {
	res := &Result{}
	var text strings.Builder

	scanner := bufio.NewScanner(bytes.NewReader(output))
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 2*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var msg streamMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "assistant":
			for _, content := range msg.Message.Content {
				switch content.Type {
				case "text":
					if content.Text != "" {
						text.WriteString(content.Text)
						text.WriteString("\n")
					}
				case "tool_use":
					res.ToolCalls = append(res.ToolCalls, domain.ToolCall{
						Name:  content.Name,
						Input: truncate(string(content.Input), 2000),
					})
				}
			}
		case "result":
			if msg.Result != "" {
				// The result message carries the final answer; prefer it
				// over accumulated assistant text
				text.Reset()
				text.WriteString(msg.Result)
			}
			res.TokensInput = msg.Usage.InputTokens
			res.TokensOutput = msg.Usage.OutputTokens
			res.CostUSD = msg.CostUSD
			if msg.SessionID != "" {
				res.TraceID = msg.SessionID
			}
		}
	}

	res.Text = strings.TrimSpace(text.String())
	return res
}

// extractStreamError scans output for error messages and returns a
// human-readable message. Errors usually sit at the end of the stream.
func extractStreamError(output []byte) string {
	lines := strings.Split(string(output), "\n")
	for i := len(lines) - 1; i >= 0 && i >= len(lines)-20; i-- {
		line := lines[i]
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var msg struct {
			Type  string `json:"type"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &msg); err == nil && msg.Type == "error" && msg.Error != "" {
			return msg.Error
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (" + strconv.Itoa(len(s)-max) + " bytes truncated)"
}
