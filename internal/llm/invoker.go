package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"brainlane/internal/llmclient"
)

// InvokeRequest is the single structured-call surface consumed by the
// pipeline and the analysis service.
type InvokeRequest struct {
	Prompt         string
	SystemPrompt   string
	ResponseSchema json.RawMessage // advisory; embedded into the prompt
	MaxTokens      int
	TaskType       string
}

// Invoker runs one structured LLM call and returns the parsed JSON document.
// Errors must stay inspectable with llmclient.IsContextTooLarge so callers
// can run their reduced-prompt retry paths.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (json.RawMessage, error)
}

// Engine adapts a (usually middleware-wrapped) client to the Invoker surface.
type Engine struct {
	client llmclient.Client
}

func NewEngine(client llmclient.Client) *Engine {
	return &Engine{client: client}
}

// Invoke rejects requests over the token budget before they reach the
// provider; the wrapped error reads as a context-window failure so callers
// with a shrink-and-retry path (IsContextTooLarge) can engage it without
// burning a provider call.
func (e *Engine) Invoke(ctx context.Context, req InvokeRequest) (json.RawMessage, error) {
	system := req.SystemPrompt
	if system == "" {
		system = "You are a precise software analysis assistant. Respond with JSON only."
	}
	if len(req.ResponseSchema) > 0 {
		system += "\n\nThe response must conform to this JSON schema:\n" + string(req.ResponseSchema)
	}

	sized := req
	sized.SystemPrompt = system
	if !e.FitPrompt(sized) {
		used := e.client.CountTokens(system) + e.client.CountTokens(req.Prompt)
		return nil, fmt.Errorf("invoke %s: %w", req.TaskType,
			llmclient.NewPermanentError(fmt.Errorf("prompt is ~%d tokens, over the %d token limit", used, e.budget(sized))))
	}

	raw, err := e.client.GenerateJSON(ctx, system, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", req.TaskType, err)
	}
	return raw, nil
}

// FitPrompt reports whether the request's combined text fits the effective
// token budget, leaving headroom for the response.
func (e *Engine) FitPrompt(req InvokeRequest) bool {
	used := e.client.CountTokens(req.SystemPrompt) + e.client.CountTokens(req.Prompt)
	return used < e.budget(req)
}

// budget is the client's capacity, lowered by the request's MaxTokens when
// the caller asked for a tighter bound.
func (e *Engine) budget(req InvokeRequest) int {
	b := e.client.TokenCapacity()
	if req.MaxTokens > 0 && req.MaxTokens < b {
		b = req.MaxTokens
	}
	return b
}
