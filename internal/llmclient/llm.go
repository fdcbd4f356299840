package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidJSON is returned when a provider produced output that is not a
// JSON document despite being asked for one.
var ErrInvalidJSON = errors.New("llm: response is not valid JSON")

// Client is the minimal surface every model provider implements. Middleware
// in the llm package decorates this interface.
type Client interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input string) (json.RawMessage, error)
	GenerateText(ctx context.Context, systemPrompt string, prompt string) (string, error)
	CountTokens(text string) int
	TokenCapacity() int
	Close() error
}

// PermanentError marks a failure that retrying cannot fix, such as an
// over-capacity request or a rejected API key. Retry middleware stops on it.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

// contextTooLargeMarkers are the provider phrasings that all mean the same
// thing: the request exceeded the model's context window.
var contextTooLargeMarkers = []string{
	"context length",
	"context_length_exceeded",
	"token limit",
	"maximum context",
	"too many tokens",
	"request too large",
}

// IsContextTooLarge reports whether err describes an over-capacity request.
// Callers use it to shrink the input and retry rather than give up.
func IsContextTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range contextTooLargeMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
