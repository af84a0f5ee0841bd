package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandflow/brandflow/internal/flow"
)

func writeTempCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	got := c.Settings("brand-positioning", "gemini-2.0-flash")
	want := flow.Settings{
		Enabled:         true,
		Model:           "gemini-2.0-flash",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
		CacheTTL:        7 * 24 * time.Hour,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("brand-positioning settings mismatch (-want +got):\n%s", diff)
	}

	watch, ok := c.Flow("competitor-watch")
	require.True(t, ok)
	assert.Equal(t, 6*time.Hour, watch.TTL())
	assert.Equal(t, "every 6 hours", watch.Schedule)

	assert.Zero(t, c.Settings("chatbot", "m").CacheTTL)
	assert.Len(t, c.Entries("m"), 4)
}

func TestUnknownFlowDisabled(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.False(t, c.Settings("nope", "m").Enabled)
}

func TestLoadMergesOverride(t *testing.T) {
	path := writeTempCatalog(t, `
flows:
  - name: chatbot
    enabled: false
  - name: brand-positioning
    model: gemini-2.5-pro
    cacheTTL: 24h
competitors:
  - name: Globex
    url: https://globex.example.com/pricing
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.False(t, c.Settings("chatbot", "m").Enabled)

	bp := c.Settings("brand-positioning", "m")
	assert.Equal(t, "gemini-2.5-pro", bp.Model)
	assert.Equal(t, 24*time.Hour, bp.CacheTTL)
	assert.Equal(t, float32(0.7), bp.Temperature, "unset fields keep defaults")

	require.Len(t, c.Competitors, 1)
	assert.Equal(t, "Globex", c.Competitors[0].Name)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing name": "flows:\n  - enabled: true\n",
		"duplicate":    "flows:\n  - name: a\n  - name: a\n",
		"temperature":  "flows:\n  - name: a\n    temperature: 3\n",
		"bad ttl":      "flows:\n  - name: a\n    cacheTTL: soon\n",
		"competitor":   "competitors:\n  - url: https://x\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"":    0,
		"7d":  7 * 24 * time.Hour,
		"6h":  6 * time.Hour,
		"90m": 90 * time.Minute,
	}
	for in, want := range tests {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDuration("-1h")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
