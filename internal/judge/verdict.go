package judge

import (
	"encoding/json"
	"fmt"
	"strings"
)

type rawVerdict struct {
	Provider  string   `json:"provider"`
	Score     *float64 `json:"score"`
	Rationale string   `json:"rationale"`
}

// parseVerdict extracts the judge's JSON verdict from model output. Models
// wrap JSON in prose or code fences often enough that we scan for the first
// balanced object instead of unmarshalling the whole response.
func parseVerdict(text string) (*Selection, error) {
	payload := extractJSONObject(text)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in %q", firstLine(text))
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}
	if raw.Provider == "" {
		return nil, fmt.Errorf("verdict missing provider")
	}
	if raw.Score != nil && (*raw.Score < 0 || *raw.Score > 1) {
		return nil, fmt.Errorf("score %v outside [0,1]", *raw.Score)
	}

	return &Selection{
		Provider:  raw.Provider,
		Score:     raw.Score,
		Rationale: raw.Rationale,
	}, nil
}

// extractJSONObject returns the first balanced {...} span in text, skipping
// braces inside JSON strings
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return s[:i]
	}
	return s
}
