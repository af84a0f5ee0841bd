package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json {\"a\":1} ```  \n", `{"a":1}`},
		{"only leading fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"doubled opening fence", "```json```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose untouched", "Sure! Here it is.", "Sure! Here it is."},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

type decoded struct {
	Meta
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestDecodeJSON(t *testing.T) {
	out, err := DecodeJSON[decoded]("```json\n{\"name\":\"x\",\"items\":[\"a\"]}\n```")
	assert.NoError(t, err)
	assert.Equal(t, "x", out.Name)
	assert.Equal(t, []string{"a"}, out.Items)

	// Missing fields are zero values, not errors.
	out, err = DecodeJSON[decoded](`{"unrelated":true}`)
	assert.NoError(t, err)
	assert.Empty(t, out.Name)

	for _, bad := range []string{"not json", `{"name":`, `["array"]`, `{"items":"not a list"}`} {
		_, err := DecodeJSON[decoded](bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestNewMeta(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 789_000_000, time.FixedZone("X", 3600))
	m := NewMeta(ParsedConfidence, at)
	assert.Equal(t, "2024-02-03T03:05:06.789Z", m.GeneratedAt)
	assert.Equal(t, 0.85, m.Confidence)
	assert.Less(t, FallbackConfidence, ParsedConfidence)
}

func TestStampPromotesThroughEmbedding(t *testing.T) {
	var d decoded
	var s Stamper = &d
	s.Stamp(Meta{Confidence: 0.5, GeneratedAt: "t"})
	assert.Equal(t, 0.5, d.Confidence)
}
