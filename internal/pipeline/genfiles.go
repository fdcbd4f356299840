package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// GeneratedFile is one file extracted from a model's free-text response.
type GeneratedFile struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	Generated bool      `json:"generated"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrNoFiles is returned when the response contains no FILE sections at all.
var ErrNoFiles = errors.New("pipeline: no FILE sections found")

// MalformedMarkerError reports a FILE marker that is not followed by a
// properly fenced code block.
type MalformedMarkerError struct {
	Line   int
	Reason string
}

func (e *MalformedMarkerError) Error() string {
	return fmt.Sprintf("pipeline: malformed FILE marker at line %d: %s", e.Line, e.Reason)
}

var fileMarkerRe = regexp.MustCompile(`^FILE:\s*` + "`?" + `([^\s` + "`" + `]+)` + "`?" + `\s*$`)

// ParseGeneratedFiles extracts files from text following the strict grammar:
// a line "FILE: <path>" followed (after optional blank lines) by a fenced
// code block whose body is the file content. The grammar is strict on
// purpose: a marker without its fence is an error, not a silent skip.
func ParseGeneratedFiles(text string, now time.Time) ([]GeneratedFile, error) {
	lines := strings.Split(text, "\n")
	var files []GeneratedFile

	for i := 0; i < len(lines); i++ {
		m := fileMarkerRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}
		path := m[1]
		markerLine := i + 1

		// Skip blank lines between the marker and its fence.
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if j >= len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
			return nil, &MalformedMarkerError{Line: markerLine, Reason: "expected fenced code block after marker"}
		}

		// Collect the fenced body.
		var body []string
		k := j + 1
		closed := false
		for ; k < len(lines); k++ {
			if strings.TrimSpace(lines[k]) == "```" {
				closed = true
				break
			}
			body = append(body, lines[k])
		}
		if !closed {
			return nil, &MalformedMarkerError{Line: markerLine, Reason: "unterminated code fence"}
		}

		files = append(files, GeneratedFile{
			Path:      path,
			Content:   strings.Join(body, "\n"),
			Generated: true,
			Timestamp: now,
		})
		i = k
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return files, nil
}
