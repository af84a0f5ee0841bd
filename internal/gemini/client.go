// Package gemini wraps google.golang.org/genai for single-shot text
// generation against the Gemini API or Vertex AI.
package gemini

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// Config selects the backend. A non-empty Project switches to Vertex AI
// with application default credentials; otherwise APIKey is required.
type Config struct {
	APIKey   string
	Project  string
	Location string
	// BaseURL overrides the service endpoint (tests, proxies).
	BaseURL    string
	HTTPClient *http.Client
}

// Client generates text with a Gemini model.
type Client struct {
	client *genai.Client
}

// New creates a Client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{HTTPClient: cfg.HTTPClient}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	switch {
	case cfg.Project != "":
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		if cc.Location == "" {
			cc.Location = "us-central1"
		}
	case cfg.APIKey != "":
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	default:
		return nil, fmt.Errorf("gemini: API key or Vertex AI project is required")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{client: client}, nil
}

// Params are the fixed sampling parameters of one call.
type Params struct {
	Temperature     float32
	MaxOutputTokens int32
	JSON            bool
}

// Generate sends prompt as a single user turn and returns the concatenated
// text of the first candidate.
func (c *Client) Generate(ctx context.Context, model, prompt string, p Params) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.Temperature),
		MaxOutputTokens: p.MaxOutputTokens,
	}
	if p.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini generate: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	return resp.Text(), nil
}
