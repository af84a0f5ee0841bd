package engine

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("engine: empty response")

// Engine abstracts a text-generation backend (Gemini, OpenRouter, Ollama).
// Flows depend on this interface instead of a concrete client.
type Engine interface {
	// Name identifies the backend in logs and status output.
	Name() string

	// Generate sends a single prompt and returns the raw text. Implementations
	// do not retry; a blank answer is reported as ErrEmptyResponse.
	Generate(ctx context.Context, req Request) (string, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool
}
