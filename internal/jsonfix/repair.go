// Package jsonfix repairs near-JSON text produced by language models.
//
// Model output frequently arrives wrapped in prose, cut off mid-object, or
// decorated with smart quotes and trailing commas. Repair applies a fixed
// sequence of conservative transforms and reports which path produced the
// result, so callers can distinguish clean output from salvaged output.
package jsonfix

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Outcome tags how the input text was handled.
type Outcome int

const (
	// OutcomeOK means the input was already valid JSON.
	OutcomeOK Outcome = iota
	// OutcomeRepaired means the transforms produced valid JSON.
	OutcomeRepaired
	// OutcomeUnparseable means no transform helped; Text holds the original.
	OutcomeUnparseable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRepaired:
		return "repaired"
	case OutcomeUnparseable:
		return "unparseable"
	}
	return "unknown"
}

// Result is the outcome of a repair attempt.
type Result struct {
	Outcome Outcome
	Text    string
}

// Parsed returns the text as a raw JSON value when the outcome is parseable.
func (r Result) Parsed() (json.RawMessage, bool) {
	if r.Outcome == OutcomeUnparseable {
		return nil, false
	}
	return json.RawMessage(r.Text), true
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// Repair attempts to turn text into a valid JSON object. Transforms apply in
// order: strip control characters, normalize smart quotes, slice to the
// outermost braces, drop trailing commas, close unbalanced braces. If the
// result still fails to parse, the ORIGINAL text is returned so callers can
// log what the model actually said.
func Repair(text string) Result {
	if json.Valid([]byte(text)) {
		return Result{Outcome: OutcomeOK, Text: text}
	}

	fixed := stripControl(text)
	fixed = normalizeQuotes(fixed)

	if start := strings.IndexByte(fixed, '{'); start >= 0 {
		if end := strings.LastIndexByte(fixed, '}'); end > start {
			fixed = fixed[start : end+1]
		} else {
			fixed = fixed[start:]
		}
	}

	fixed = trailingCommaRe.ReplaceAllString(fixed, "$1")

	opens, closes := braceCounts(fixed)
	for i := closes; i < opens; i++ {
		fixed += "}"
	}

	if json.Valid([]byte(fixed)) {
		return Result{Outcome: OutcomeRepaired, Text: fixed}
	}
	return Result{Outcome: OutcomeUnparseable, Text: text}
}

// stripControl removes control bytes below 0x20 except tab, newline and
// carriage return, which json tolerates outside string literals.
func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", `'`, "’", `'`,
)

func normalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

// braceCounts counts curly braces outside string literals, honoring escapes.
func braceCounts(s string) (opens, closes int) {
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			opens++
		case !inString && c == '}':
			closes++
		}
	}
	return opens, closes
}
