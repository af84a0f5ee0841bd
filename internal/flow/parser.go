package flow

import (
	"encoding/json"
	"strings"
	"time"
)

// Confidence reported for model output that parsed, and for fallbacks.
const (
	ParsedConfidence   = 0.85
	FallbackConfidence = 0.5
)

// TimestampLayout is the generatedAt format: UTC with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Meta carries the fields every flow output shares. Output types embed it.
type Meta struct {
	Confidence  float64 `json:"confidence"`
	GeneratedAt string  `json:"generatedAt"`
}

// Stamp overwrites the metadata.
func (m *Meta) Stamp(v Meta) { *m = v }

// Stamper is implemented by outputs that embed Meta.
type Stamper interface {
	Stamp(Meta)
}

// NewMeta builds the metadata for an output produced at now.
func NewMeta(confidence float64, now time.Time) Meta {
	return Meta{Confidence: confidence, GeneratedAt: now.UTC().Format(TimestampLayout)}
}

// StripFences removes a surrounding Markdown code fence, with or without a
// json language tag, and the whitespace around it. A bare fence directly
// after a json-tagged one is stripped too.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON strips fences and decodes raw into Out. Fields missing from
// the model output stay at their zero values; only a failed decode is an
// error.
func DecodeJSON[Out any](raw string) (Out, error) {
	var out Out
	err := json.Unmarshal([]byte(StripFences(raw)), &out)
	return out, err
}
