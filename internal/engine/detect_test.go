package engine

import (
	"context"
	"testing"

	"github.com/brandflow/brandflow/internal/gemini"
)

func TestDetect(t *testing.T) {
	ctx := context.Background()

	e, err := Detect(ctx, DetectConfig{Backend: BackendOllama, OllamaBaseURL: "http://localhost:11434"})
	if err != nil {
		t.Fatalf("Detect(ollama): %v", err)
	}
	if _, ok := e.(*OllamaEngine); !ok {
		t.Errorf("Detect returned %T, want *OllamaEngine", e)
	}

	e, err = Detect(ctx, DetectConfig{Backend: BackendOpenRouter, OpenRouterAPIKey: "k"})
	if err != nil {
		t.Fatalf("Detect(openrouter): %v", err)
	}
	if e.Name() != BackendOpenRouter {
		t.Errorf("Name() = %q", e.Name())
	}

	e, err = Detect(ctx, DetectConfig{Backend: BackendGemini, Gemini: gemini.Config{APIKey: "k"}})
	if err != nil {
		t.Fatalf("Detect(gemini): %v", err)
	}
	if _, ok := e.(*GeminiEngine); !ok {
		t.Errorf("Detect returned %T, want *GeminiEngine", e)
	}
}

func TestDetect_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := Detect(ctx, DetectConfig{Backend: "mlx"}); err == nil {
		t.Error("unknown backend accepted")
	}
	if _, err := Detect(ctx, DetectConfig{Backend: BackendOpenRouter}); err == nil {
		t.Error("openrouter without key accepted")
	}
	if _, err := Detect(ctx, DetectConfig{Backend: BackendGemini}); err == nil {
		t.Error("gemini without credentials accepted")
	}
}
