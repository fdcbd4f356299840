package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeCall records one call made against a FakeClient.
type FakeCall struct {
	Kind   string // "json" or "text"
	Prompt string
	Input  string
}

// FakeResponse is one scripted reply. Err takes precedence over the payload.
type FakeResponse struct {
	JSON json.RawMessage
	Text string
	Err  error
}

// FakeClient returns scripted responses in order for offline tests. When the
// script runs out it falls back to an empty JSON object / empty string.
type FakeClient struct {
	mu       sync.Mutex
	script   []FakeResponse
	calls    []FakeCall
	tokenCap int
}

func NewFakeClient(cap int, script ...FakeResponse) *FakeClient {
	if cap <= 0 {
		cap = 4096
	}
	return &FakeClient{script: script, tokenCap: cap}
}

// Enqueue appends scripted responses.
func (f *FakeClient) Enqueue(rs ...FakeResponse) {
	f.mu.Lock()
	f.script = append(f.script, rs...)
	f.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (f *FakeClient) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }
func (f *FakeClient) CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return len(text) / 4
}
func (f *FakeClient) TokenCapacity() int { return f.tokenCap }

func (f *FakeClient) next(call FakeCall) (FakeResponse, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if len(f.script) == 0 {
		return FakeResponse{}, false
	}
	r := f.script[0]
	f.script = f.script[1:]
	return r, true
}

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt, input string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := f.next(FakeCall{Kind: "json", Prompt: prompt, Input: input})
	if !ok {
		return json.RawMessage(`{}`), nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if r.JSON == nil {
		return json.RawMessage(`{}`), nil
	}
	return r.JSON, nil
}

func (f *FakeClient) GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r, ok := f.next(FakeCall{Kind: "text", Prompt: prompt, Input: systemPrompt})
	if !ok {
		return "", nil
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}
