package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Request is a single completion call. Model overrides the provider default when set.
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
	JSONMode     bool
}

type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

var ErrEmptyResponse = errors.New("llm returned an empty response")

// RateLimitError marks a 429-class failure. RetryAfter is zero when the
// provider gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
