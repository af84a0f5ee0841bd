package engine

import (
	"context"
	"strings"
	"time"

	"github.com/brandflow/brandflow/internal/ollama"
)

// OllamaEngine adapts ollama.Client to the Engine interface.
type OllamaEngine struct {
	client *ollama.Client
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at baseURL.
func NewOllamaEngine(baseURL string, timeout time.Duration) *OllamaEngine {
	return &OllamaEngine{client: ollama.New(baseURL, timeout)}
}

// Client exposes the underlying client for model management at startup.
func (e *OllamaEngine) Client() *ollama.Client { return e.client }

func (e *OllamaEngine) Name() string { return BackendOllama }

func (e *OllamaEngine) Generate(ctx context.Context, req Request) (string, error) {
	out, err := e.client.Generate(ctx, req.Model, req.Prompt, ollama.Options{
		Temperature: req.Temperature,
		NumPredict:  req.MaxOutputTokens,
	}, req.JSON)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}
