package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brandflow/brandflow/internal/gemini"
)

// Backend names accepted by Detect.
const (
	BackendGemini     = "gemini"
	BackendOpenRouter = "openrouter"
	BackendOllama     = "ollama"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Backend string
	Timeout time.Duration

	Gemini gemini.Config

	OpenRouterAPIKey  string
	OpenRouterBaseURL string

	OllamaBaseURL string
}

// Detect returns the Engine named by cfg.Backend, checking that the
// credentials it needs are present.
func Detect(ctx context.Context, cfg DetectConfig) (Engine, error) {
	switch cfg.Backend {
	case BackendGemini, "":
		if cfg.Gemini.HTTPClient == nil && cfg.Timeout > 0 {
			cfg.Gemini.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		}
		return NewGeminiEngine(ctx, cfg.Gemini)
	case BackendOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("engine %q requires an API key: set BRANDFLOW_OPENROUTER_API_KEY", cfg.Backend)
		}
		return NewOpenRouterEngine(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.Timeout), nil
	case BackendOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q (want gemini, openrouter or ollama)", cfg.Backend)
	}
}
