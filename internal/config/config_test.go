package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every BRANDFLOW_* variable for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 8081 {
		t.Errorf("Server.MCPPort = %d, want 8081", cfg.Server.MCPPort)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Engine.Backend != "gemini" || cfg.Engine.Model != "gemini-2.0-flash" {
		t.Errorf("Engine = %+v, want gemini/gemini-2.0-flash", cfg.Engine)
	}
	if cfg.Engine.Timeout != 60*time.Second {
		t.Errorf("Engine.Timeout = %s, want 60s", cfg.Engine.Timeout)
	}
	if !cfg.Telemetry.MetricsEnabled {
		t.Error("metrics should be enabled by default")
	}
	if cfg.Flows.Dedupe {
		t.Error("dedupe should be off by default")
	}
}

func TestYAMLParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
server:
  host: 0.0.0.0
  port: 9000
  mcp_port: 9001
log:
  level: debug
storage:
  backend: memory
  data_dir: /tmp/brandflow-test
engine:
  backend: ollama
  model: llama3.1
  timeout: 2m
ollama:
  base_url: http://ollama:11434
flows:
  catalog_path: /etc/brandflow/flows.yaml
  dedupe: true
leads:
  project_id: acme-prod
telemetry:
  metrics_enabled: false
  trace_stdout: "true"
`)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 || cfg.Server.MCPPort != 9001 {
		t.Errorf("ports = %d/%d, want 9000/9001", cfg.Server.Port, cfg.Server.MCPPort)
	}
	if cfg.ServerURL() != "http://127.0.0.1:9000" {
		t.Errorf("ServerURL = %q", cfg.ServerURL())
	}
	if cfg.Storage.Backend != "memory" || cfg.Storage.DataDir != "/tmp/brandflow-test" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Engine.Backend != "ollama" || cfg.Engine.Model != "llama3.1" || cfg.Engine.Timeout != 2*time.Minute {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Ollama.BaseURL != "http://ollama:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if !cfg.Flows.Dedupe || cfg.Flows.CatalogPath != "/etc/brandflow/flows.yaml" {
		t.Errorf("Flows = %+v", cfg.Flows)
	}
	if cfg.Leads.ProjectID != "acme-prod" {
		t.Errorf("Leads.ProjectID = %q", cfg.Leads.ProjectID)
	}
	if cfg.Telemetry.MetricsEnabled || !cfg.Telemetry.TraceStdout {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server:\n  port: 9000\n")
	t.Setenv("BRANDFLOW_SERVER_PORT", "7000")
	t.Setenv("BRANDFLOW_GEMINI_API_KEY", "env-key")
	t.Setenv("BRANDFLOW_FLOWS_DEDUPE", "1")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("Gemini.APIKey = %q, want env-key", cfg.Gemini.APIKey)
	}
	if !cfg.Flows.Dedupe {
		t.Error("Flows.Dedupe = false, want true")
	}
}

func TestInvalidEnvKeepsValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRANDFLOW_SERVER_PORT", "not-a-port")
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestSecretsIgnoredInFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "api:\n  token: from-file\ngemini:\n  api_key: from-file\n")
	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.Token != "" || cfg.Gemini.APIKey != "" {
		t.Errorf("secrets read from file: token=%q key=%q", cfg.API.Token, cfg.Gemini.APIKey)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad storage", "storage:\n  backend: mongo\n", "storage.backend"},
		{"postgres without dsn", "storage:\n  backend: postgres\n", "BRANDFLOW_STORAGE_POSTGRES_DSN"},
		{"bad engine", "engine:\n  backend: gpt\n", "engine.backend"},
		{"bad level", "log:\n  level: verbose\n", "log.level"},
		{"bad port type", "server:\n  port: eighty\n", "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := loadFromPath(writeTempConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestPostgresWithDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRANDFLOW_STORAGE_POSTGRES_DSN", "postgres://localhost/brandflow")
	cfg, err := loadFromPath(writeTempConfig(t, "storage:\n  backend: postgres\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.PostgresDSN != "postgres://localhost/brandflow" {
		t.Errorf("PostgresDSN = %q", cfg.Storage.PostgresDSN)
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "brandflow", "config.yaml")
	b, err := newFileBackend(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := setKey(b, "server.port", "9100"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if err := setKey(b, "engine.timeout", "90s"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if err := setKey(b, "flows.dedupe", "true"); err != nil {
		t.Fatalf("setKey: %v", err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Engine.Timeout != 90*time.Second {
		t.Errorf("Engine.Timeout = %s, want 1m30s", cfg.Engine.Timeout)
	}
	if !cfg.Flows.Dedupe {
		t.Error("Flows.Dedupe = false, want true")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSetKeyRejects(t *testing.T) {
	b, err := newFileBackend(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := setKey(b, "api.token", "x"); err == nil || !strings.Contains(err.Error(), "BRANDFLOW_API_TOKEN") {
		t.Errorf("setting a secret: err = %v", err)
	}
	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.API.Token = "super-secret"
	for _, k := range ShowAll(cfg) {
		if strings.Contains(k.Value, "super-secret") {
			t.Fatalf("secret value leaked for %s", k.Key)
		}
		if k.Key == "api.token" && k.Value != "(set)" {
			t.Errorf("api.token shown as %q, want (set)", k.Value)
		}
		if k.Key == "gemini.api_key" && k.Value != "(unset)" {
			t.Errorf("gemini.api_key shown as %q, want (unset)", k.Value)
		}
	}
}

func TestValidKeysExcludeSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		for _, s := range specs {
			if s.key == k && s.secret {
				t.Errorf("secret key %s listed as settable", k)
			}
		}
	}
}
