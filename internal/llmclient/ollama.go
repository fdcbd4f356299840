package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	ollama "github.com/JexSrs/go-ollama"
)

const defaultOllamaTokenCap = 4000

// OllamaClient runs prompts against a local Ollama daemon, used for
// development and air-gapped deployments.
type OllamaClient struct {
	cli      *ollama.Ollama
	model    string
	tokenCap int
}

func NewOllamaClient(baseURL, model string, tokenCap int) (*OllamaClient, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: missing model name")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if tokenCap <= 0 {
		tokenCap = defaultOllamaTokenCap
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse base url: %w", err)
	}
	return &OllamaClient{cli: ollama.New(*u), model: model, tokenCap: tokenCap}, nil
}

func (c *OllamaClient) Name() string       { return "ollama:" + c.model }
func (c *OllamaClient) TokenCapacity() int { return c.tokenCap }
func (c *OllamaClient) Close() error       { return nil }

func (c *OllamaClient) CountTokens(text string) int {
	return EstimateTokens(text)
}

func (c *OllamaClient) GenerateJSON(ctx context.Context, prompt, input string) (json.RawMessage, error) {
	system := prompt + "\nRespond with a single JSON object only."
	out, err := c.generate(ctx, system, "[INPUT JSON]\n"+input)
	if err != nil {
		return nil, err
	}
	out = trimFences(out)
	if !json.Valid([]byte(out)) {
		return nil, fmt.Errorf("ollama: %w", ErrInvalidJSON)
	}
	return json.RawMessage(out), nil
}

func (c *OllamaClient) GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return c.generate(ctx, systemPrompt, prompt)
}

func (c *OllamaClient) generate(ctx context.Context, system, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := c.cli.Generate(
		c.cli.Generate.WithModel(c.model),
		c.cli.Generate.WithSystem(system),
		c.cli.Generate.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("ollama: generate: %w", err)
	}
	if res == nil || !res.Done {
		return "", fmt.Errorf("ollama: incomplete generation")
	}
	return res.Response, nil
}

// trimFences strips a markdown code fence wrapper that local models like to
// add around JSON output.
func trimFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
