package engine

import (
	"context"
	"strings"

	"github.com/brandflow/brandflow/internal/gemini"
)

// GeminiEngine adapts gemini.Client to the Engine interface.
type GeminiEngine struct {
	client *gemini.Client
}

// NewGeminiEngine creates a GeminiEngine.
func NewGeminiEngine(ctx context.Context, cfg gemini.Config) (*GeminiEngine, error) {
	c, err := gemini.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GeminiEngine{client: c}, nil
}

func (e *GeminiEngine) Name() string { return BackendGemini }

func (e *GeminiEngine) Generate(ctx context.Context, req Request) (string, error) {
	out, err := e.client.Generate(ctx, req.Model, req.Prompt, gemini.Params{
		Temperature:     req.Temperature,
		MaxOutputTokens: int32(req.MaxOutputTokens),
		JSON:            req.JSON,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// IsRunning reports true once a client exists; the Gemini API has no cheap
// unauthenticated health probe.
func (e *GeminiEngine) IsRunning(context.Context) bool { return e.client != nil }
