package engine

import (
	"context"
	"strings"
	"time"

	"github.com/brandflow/brandflow/internal/openrouter"
)

// OpenRouterEngine adapts openrouter.Client to the Engine interface. The
// prompt is sent as a single user message.
type OpenRouterEngine struct {
	client *openrouter.Client
}

// NewOpenRouterEngine creates an engine for the given key and base URL.
func NewOpenRouterEngine(apiKey, baseURL string, timeout time.Duration) *OpenRouterEngine {
	return &OpenRouterEngine{client: openrouter.NewClient(apiKey, baseURL, timeout)}
}

func (e *OpenRouterEngine) Name() string { return BackendOpenRouter }

func (e *OpenRouterEngine) Generate(ctx context.Context, req Request) (string, error) {
	cr := openrouter.ChatRequest{
		Model:       req.Model,
		Messages:    []openrouter.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
	}
	if req.JSON {
		cr.ResponseFormat = &openrouter.ResponseFormat{Type: "json_object"}
	}
	out, err := e.client.Complete(ctx, cr)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func (e *OpenRouterEngine) IsRunning(ctx context.Context) bool {
	return e.client.Ping(ctx) == nil
}
