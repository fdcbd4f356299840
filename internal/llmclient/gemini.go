package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiTokenCap = 12000

// GeminiClient wraps the official genai SDK.
type GeminiClient struct {
	client   *genai.Client
	model    string
	tokenCap int
}

func NewGeminiClient(ctx context.Context, apiKey, model string, tokenCap int) (*GeminiClient, error) {
	if model == "" {
		return nil, fmt.Errorf("gemini: missing model name")
	}
	if tokenCap <= 0 {
		tokenCap = defaultGeminiTokenCap
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &GeminiClient{client: client, model: model, tokenCap: tokenCap}, nil
}

func (c *GeminiClient) Name() string       { return "gemini:" + c.model }
func (c *GeminiClient) TokenCapacity() int { return c.tokenCap }
func (c *GeminiClient) Close() error       { return nil }

func (c *GeminiClient) CountTokens(text string) int {
	return EstimateTokens(text)
}

func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt, input string) (json.RawMessage, error) {
	full := prompt + "\n\n[INPUT JSON]\n" + input
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(full),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		if IsContextTooLarge(err) {
			return nil, NewPermanentError(err)
		}
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}
	text, err := firstCandidateText(resp)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("gemini: %w", ErrInvalidJSON)
	}
	return json.RawMessage(text), nil
}

func (c *GeminiClient) GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(systemPrompt+"\n\n"+prompt), nil)
	if err != nil {
		if IsContextTooLarge(err) {
			return "", NewPermanentError(err)
		}
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	return firstCandidateText(resp)
}

func firstCandidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: empty response")
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			out += part.Text
		}
	}
	if out == "" {
		return "", fmt.Errorf("gemini: empty response text")
	}
	return out, nil
}
