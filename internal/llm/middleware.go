package llm

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"brainlane/internal/llmclient"
)

// Middleware decorates a Client to inject cross-cutting concerns
// (rate limiting, retries, logging).
type Middleware func(llmclient.Client) llmclient.Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.Client, mws ...Middleware) llmclient.Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// RateLimit throttles calls to at most rps per second with a burst
// allowance. If rps <= 0, the limiter is effectively disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next llmclient.Client) llmclient.Client {
		return &rateLimited{next: next, rl: newPacer(rps, burst)} // nil when disabled
	}
}

type rateLimited struct {
	next llmclient.Client
	rl   *pacer
}

func (c *rateLimited) Name() string                { return c.next.Name() }
func (c *rateLimited) Close() error                { return c.next.Close() }
func (c *rateLimited) CountTokens(text string) int { return c.next.CountTokens(text) }
func (c *rateLimited) TokenCapacity() int          { return c.next.TokenCapacity() }

func (c *rateLimited) GenerateJSON(ctx context.Context, prompt, input string) (json.RawMessage, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateJSON(ctx, prompt, input)
}

func (c *rateLimited) GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return "", err
	}
	return c.next.GenerateText(ctx, systemPrompt, prompt)
}

// pacer is a token bucket tracked arithmetically: the available token count
// is derived from the time elapsed since the last acquire, so there is no
// refill goroutine to start or stop.
type pacer struct {
	mu    sync.Mutex
	rate  float64 // tokens per second
	burst float64
	level float64
	last  time.Time
}

func newPacer(rps float64, burst int) *pacer {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &pacer{rate: rps, burst: float64(burst), level: float64(burst), last: time.Now()}
}

// Acquire blocks until a token is available or the context is canceled. A
// nil pacer admits everything.
func (p *pacer) Acquire(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for {
		p.mu.Lock()
		now := time.Now()
		p.level += now.Sub(p.last).Seconds() * p.rate
		if p.level > p.burst {
			p.level = p.burst
		}
		p.last = now
		if p.level >= 1 {
			p.level--
			p.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - p.level) / p.rate * float64(time.Second))
		p.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// WithLogging logs call durations and errors. Provide a custom logger or nil
// to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next llmclient.Client) llmclient.Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next llmclient.Client
	log  *log.Logger
}

func (l *logging) Name() string                { return l.next.Name() }
func (l *logging) Close() error                { return l.next.Close() }
func (l *logging) CountTokens(text string) int { return l.next.CountTokens(text) }
func (l *logging) TokenCapacity() int          { return l.next.TokenCapacity() }

func (l *logging) GenerateJSON(ctx context.Context, prompt, input string) (json.RawMessage, error) {
	start := time.Now()
	raw, err := l.next.GenerateJSON(ctx, prompt, input)
	if err != nil {
		l.log.Printf("llm: %s json call failed after %s: %v", l.next.Name(), time.Since(start).Round(time.Millisecond), err)
		return nil, err
	}
	l.log.Printf("llm: %s json call ok in %s (%d bytes)", l.next.Name(), time.Since(start).Round(time.Millisecond), len(raw))
	return raw, nil
}

func (l *logging) GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error) {
	start := time.Now()
	out, err := l.next.GenerateText(ctx, systemPrompt, prompt)
	if err != nil {
		l.log.Printf("llm: %s text call failed after %s: %v", l.next.Name(), time.Since(start).Round(time.Millisecond), err)
		return "", err
	}
	l.log.Printf("llm: %s text call ok in %s (%d bytes)", l.next.Name(), time.Since(start).Round(time.Millisecond), len(out))
	return out, nil
}
