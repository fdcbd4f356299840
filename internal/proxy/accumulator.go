package proxy

import (
	"encoding/json"
	"strings"
)

// Usage mirrors the upstream token accounting object.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamAccumulator folds an upstream SSE chat-completion stream into the
// pieces needed to frame one non-streaming response: the concatenated delta
// content, the first-seen role, the finish reason, and the usage object from
// the final chunk.
type StreamAccumulator struct {
	content      strings.Builder
	role         string
	finishReason string
	usage        *Usage
	done         bool
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// Feed consumes one line of the SSE stream. Non-data lines and unparseable
// chunks are ignored; the accumulator is best-effort by design.
func (a *StreamAccumulator) Feed(line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" {
		return
	}
	if payload == "[DONE]" {
		a.done = true
		return
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return
	}
	if chunk.Usage != nil {
		a.usage = chunk.Usage
	}
	if len(chunk.Choices) == 0 {
		return
	}
	c := chunk.Choices[0]
	if a.role == "" && c.Delta.Role != "" {
		a.role = c.Delta.Role
	}
	a.content.WriteString(c.Delta.Content)
	if c.FinishReason != nil && *c.FinishReason != "" {
		a.finishReason = *c.FinishReason
	}
}

func (a *StreamAccumulator) Content() string { return a.content.String() }
func (a *StreamAccumulator) Done() bool      { return a.done }

func (a *StreamAccumulator) Role() string {
	if a.role == "" {
		return "assistant"
	}
	return a.role
}

func (a *StreamAccumulator) FinishReason() string {
	if a.finishReason == "" {
		return "stop"
	}
	return a.finishReason
}

func (a *StreamAccumulator) Usage() Usage {
	if a.usage == nil {
		return Usage{}
	}
	return *a.usage
}
