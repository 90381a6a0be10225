package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Client is a minimal LLM interface to allow pluggable providers.
// Generate sends one prompt and returns the model's text unmodified.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
