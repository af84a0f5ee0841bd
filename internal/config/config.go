package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storage    StorageConfig
	Engine     EngineConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Ollama     OllamaConfig
	Flows      FlowsConfig
	Leads      LeadsConfig
	API        APIConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Host    string
	Port    int
	MCPPort int
}

type LogConfig struct {
	Level string
}

type StorageConfig struct {
	Backend     string
	DataDir     string
	PostgresDSN string
}

type EngineConfig struct {
	Backend string
	Model   string
	Timeout time.Duration
}

type GeminiConfig struct {
	APIKey         string
	VertexProject  string
	VertexLocation string
}

type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
}

type OllamaConfig struct {
	BaseURL string
}

type FlowsConfig struct {
	CatalogPath string
	Dedupe      bool
}

type LeadsConfig struct {
	FunctionURL string
	ProjectID   string
}

type APIConfig struct {
	Token string
}

type TelemetryConfig struct {
	MetricsEnabled bool
	TraceStdout    bool
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8080,
			MCPPort: 8081,
		},
		Log: LogConfig{Level: "info"},
		Storage: StorageConfig{
			Backend: "sqlite",
			DataDir: defaultDataDir(),
		},
		Engine: EngineConfig{
			Backend: "gemini",
			Model:   "gemini-2.0-flash",
			Timeout: 60 * time.Second,
		},
		Gemini: GeminiConfig{VertexLocation: "us-central1"},
		Ollama: OllamaConfig{BaseURL: "http://localhost:11434"},
		Telemetry: TelemetryConfig{
			MetricsEnabled: true,
		},
	}
}

// Load reads configuration from $XDG_CONFIG_HOME/brandflow/config.yaml and
// the environment. Environment variables (BRANDFLOW_*) override file
// values; secrets are read from the environment only.
func Load() (Config, error) {
	return loadFromPath(ConfigFilePath())
}

func loadFromPath(path string) (Config, error) {
	b, err := newFileBackend(path)
	if err != nil {
		return Config{}, err
	}
	return loadWith(b)
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case "sqlite", "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.backend is postgres but no DSN is set: set BRANDFLOW_STORAGE_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("storage.backend must be sqlite, postgres or memory, got %q", c.Storage.Backend)
	}
	switch c.Engine.Backend {
	case "gemini", "openrouter", "ollama":
	default:
		return fmt.Errorf("engine.backend must be gemini, openrouter or ollama, got %q", c.Engine.Backend)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive, got %s", c.Engine.Timeout)
	}
	return nil
}

// ServerURL is the base URL clients use to reach the HTTP API.
func (c Config) ServerURL() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}

// ConfigFilePath returns the config file location.
func ConfigFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "brandflow", "config.yaml")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "brandflow-data"
		}
	}
	return filepath.Join(dir, "brandflow")
}
