package workspace

import (
	"bufio"
	"regexp"
	"strings"
)

// fenceRe matches a code fence opener that names a file, in the forms
// agents commonly emit:
//
//	```go path=cmd/main.go
//	```go file=cmd/main.go
//	```path=cmd/main.go
var fenceRe = regexp.MustCompile("^```[a-zA-Z0-9+_-]*\\s*(?:path|file)=([^\\s`]+)\\s*$")

// ExtractFiles parses file-fenced code blocks out of candidate output.
// Returns a map of relative path to file content; later blocks for the same
// path win, matching how agents revise earlier answers.
func ExtractFiles(output string) map[string]string {
	files := make(map[string]string)

	scanner := bufio.NewScanner(strings.NewReader(output))
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	var (
		current string
		body    []string
		inBlock bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		if inBlock {
			if strings.TrimSpace(line) == "```" {
				files[current] = strings.Join(body, "\n") + "\n"
				inBlock = false
				body = nil
				continue
			}
			body = append(body, line)
			continue
		}
		if m := fenceRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			current = strings.TrimPrefix(m[1], "./")
			inBlock = true
		}
	}

	// Unterminated block still counts; agents get cut off mid-file
	if inBlock && current != "" {
		files[current] = strings.Join(body, "\n") + "\n"
	}

	return files
}
