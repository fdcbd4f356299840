package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"brainlane/internal/scanner"
)

const systemPrompt = `You are a senior engineer reviewing an uploaded codebase. Produce a JSON object:
{"summary", "stack": [..], "architecture", "vulnerabilities": [..], "smells": [..], "issues": [..],
 "testSuggestions": [..], "tasks": [{"title", "description", "priority" ("critical"|"high"|"medium"|"low")}]}
Base every claim on the provided files and diagnosis. Respond with JSON only.`

const taskOnlyPrompt = `You turn analysis findings into a task backlog. Given the findings JSON, produce {"tasks": [{"title", "description", "priority"}]} with 3-8 concrete tasks. Respond with JSON only.`

// Prompt size budgets. The reduced tier exists for the context-too-large
// retry: fewer files, smaller caps, config excerpts only.
type promptBudget struct {
	listingLimit  int // file paths in the listing
	configCap     int // chars per important config file
	sampleFiles   int
	sampleCap     int
	includeSource bool
}

var (
	fullBudget    = promptBudget{listingLimit: 200, configCap: 4000, sampleFiles: 6, sampleCap: 2500, includeSource: true}
	reducedBudget = promptBudget{listingLimit: 50, configCap: 1000, sampleFiles: 0, sampleCap: 0, includeSource: false}
)

var importantNames = map[string]struct{}{
	"package.json": {}, "readme.md": {}, "readme": {}, "requirements.txt": {},
	"go.mod": {}, "dockerfile": {}, "tsconfig.json": {},
}

// buildPrompt assembles the one-shot analysis prompt: truncated file listing,
// capped config files, capped sample sources, and the local diagnosis.
func buildPrompt(files []scanner.SourceFile, diag *scanner.Diagnosis, b promptBudget) string {
	var sb strings.Builder

	sb.WriteString("## File listing\n")
	for i, f := range files {
		if i >= b.listingLimit {
			fmt.Fprintf(&sb, "... and %d more files\n", len(files)-b.listingLimit)
			break
		}
		sb.WriteString(f.Path)
		sb.WriteByte('\n')
	}

	sb.WriteString("\n## Key files\n")
	for _, f := range files {
		if _, ok := importantNames[strings.ToLower(baseName(f.Path))]; !ok {
			continue
		}
		fmt.Fprintf(&sb, "--- %s ---\n%s\n", f.Path, truncate(f.Content, b.configCap))
	}

	if b.includeSource {
		sb.WriteString("\n## Sample sources\n")
		n := 0
		for _, f := range files {
			if _, ok := importantNames[strings.ToLower(baseName(f.Path))]; ok {
				continue
			}
			if n >= b.sampleFiles {
				break
			}
			fmt.Fprintf(&sb, "--- %s ---\n%s\n", f.Path, truncate(f.Content, b.sampleCap))
			n++
		}
	}

	if diag != nil {
		if raw, err := json.Marshal(diag); err == nil {
			sb.WriteString("\n## Local diagnosis\n")
			sb.Write(raw)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
