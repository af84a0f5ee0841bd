// Package leads forwards website lead submissions to the lead-capture
// cloud function.
package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brandflow/brandflow/internal/telemetry"
)

const maxResponseBytes = 1 << 20

// ErrNotConfigured is returned when no function URL is set.
var ErrNotConfigured = errors.New("lead function URL is not configured")

// FunctionURL is the callable-function endpoint for a project.
func FunctionURL(projectID string) string {
	if projectID == "" {
		return ""
	}
	return fmt.Sprintf("https://us-central1-%s.cloudfunctions.net/submitLead", projectID)
}

// Forwarder posts leads to the function.
type Forwarder struct {
	url     string
	client  *http.Client
	logger  *zap.Logger
	metrics telemetry.Recorder
}

// NewForwarder creates a Forwarder. A nil client gets a 30s timeout.
func NewForwarder(url string, client *http.Client, logger *zap.Logger, metrics telemetry.Recorder) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.Noop{}
	}
	return &Forwarder{url: url, client: client, logger: logger.Named("leads"), metrics: metrics}
}

// Forward wraps body as {"data": body} and returns the function's
// result.result when present, else the whole response body.
func (f *Forwarder) Forward(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	out, err := f.forward(ctx, body)
	f.metrics.RecordLead(ctx, err == nil)
	if err != nil {
		f.logger.Error("lead submission failed", zap.Error(err))
		return nil, err
	}
	f.logger.Info("lead forwarded")
	return out, nil
}

func (f *Forwarder) forward(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	if f.url == "" {
		return nil, ErrNotConfigured
	}
	if !json.Valid(body) {
		return nil, errors.New("lead body is not valid JSON")
	}
	payload, err := json.Marshal(struct {
		Data json.RawMessage `json:"data"`
	}{Data: body})
	if err != nil {
		return nil, fmt.Errorf("encoding lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling lead function: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading lead function response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("lead function returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	if !json.Valid(raw) {
		return nil, errors.New("lead function returned invalid JSON")
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Result) > 0 && string(envelope.Result) != "null" {
		return envelope.Result, nil
	}
	return raw, nil
}
