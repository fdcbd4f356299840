package llmclient

import "strings"

// EstimateTokens is a cheap local token estimate used for capacity planning
// before a request is sent. Whitespace-separated words approximate tokens
// well enough for budgeting; dense text with no spaces falls back to a
// bytes/4 heuristic.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(strings.Fields(text))
	if n == 0 {
		n = len(text) / 4
	}
	if n < 1 {
		n = 1
	}
	return n
}
