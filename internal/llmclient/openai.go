package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultOpenAITokenCap = 8000
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	http     *http.Client
	apiKey   string
	model    string
	endpoint string
	tokenCap int
}

// NewOpenAIClient builds a client for the given model. An empty apiKey falls
// back to OPENAI_API_KEY; an empty endpoint falls back to the public API.
func NewOpenAIClient(apiKey, model, endpoint string, tokenCap int) (*OpenAIClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: missing API key")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: missing model name")
	}
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	if tokenCap <= 0 {
		tokenCap = defaultOpenAITokenCap
	}
	return &OpenAIClient{
		http:     &http.Client{Timeout: 120 * time.Second},
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		tokenCap: tokenCap,
	}, nil
}

func (c *OpenAIClient) Name() string       { return "openai:" + c.model }
func (c *OpenAIClient) TokenCapacity() int { return c.tokenCap }
func (c *OpenAIClient) Close() error       { return nil }

func (c *OpenAIClient) CountTokens(text string) int {
	return EstimateTokens(text)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// GenerateJSON asks for a single JSON object via response_format and
// validates the result before returning it.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt, input string) (json.RawMessage, error) {
	req := chatReq{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: "[INPUT JSON]\n" + input},
		},
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}
	content, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("openai: %w", ErrInvalidJSON)
	}
	return json.RawMessage(content), nil
}

func (c *OpenAIClient) GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error) {
	req := chatReq{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	return c.complete(ctx, req)
}

func (c *OpenAIClient) complete(ctx context.Context, req chatReq) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(raw)
		if len(snippet) > 2048 {
			snippet = snippet[:2048]
		}
		err := fmt.Errorf("openai: status %d: %s", resp.StatusCode, snippet)
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(snippet, "context_length_exceeded") {
			return "", NewPermanentError(err)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", NewPermanentError(err)
		}
		return "", err
	}

	var parsed chatResp
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai: api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
