package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

func (t keyType) String() string {
	switch t {
	case kInt:
		return "int"
	case kBool:
		return "bool"
	case kDuration:
		return "duration"
	default:
		return "string"
	}
}

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "BRANDFLOW_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "BRANDFLOW_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "BRANDFLOW_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "log.level", typ: kString, env: "BRANDFLOW_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "storage.backend", typ: kString, env: "BRANDFLOW_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BRANDFLOW_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.postgres_dsn", typ: kString, env: "BRANDFLOW_STORAGE_POSTGRES_DSN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Storage.PostgresDSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.PostgresDSN },
	},
	{
		key: "engine.backend", typ: kString, env: "BRANDFLOW_ENGINE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Engine.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Backend },
	},
	{
		key: "engine.model", typ: kString, env: "BRANDFLOW_ENGINE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Engine.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Model },
	},
	{
		key: "engine.timeout", typ: kDuration, env: "BRANDFLOW_ENGINE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Engine.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Engine.Timeout },
	},
	{
		key: "gemini.api_key", typ: kString, env: "BRANDFLOW_GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.vertex_project", typ: kString, env: "BRANDFLOW_GEMINI_VERTEX_PROJECT",
		apply:   func(cfg *Config, v any) { cfg.Gemini.VertexProject = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.VertexProject },
	},
	{
		key: "gemini.vertex_location", typ: kString, env: "BRANDFLOW_GEMINI_VERTEX_LOCATION",
		apply:   func(cfg *Config, v any) { cfg.Gemini.VertexLocation = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.VertexLocation },
	},
	{
		key: "openrouter.api_key", typ: kString, env: "BRANDFLOW_OPENROUTER_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.APIKey },
	},
	{
		key: "openrouter.base_url", typ: kString, env: "BRANDFLOW_OPENROUTER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.BaseURL },
	},
	{
		key: "ollama.base_url", typ: kString, env: "BRANDFLOW_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "flows.catalog_path", typ: kString, env: "BRANDFLOW_FLOWS_CATALOG_PATH",
		apply:   func(cfg *Config, v any) { cfg.Flows.CatalogPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Flows.CatalogPath },
	},
	{
		key: "flows.dedupe", typ: kBool, env: "BRANDFLOW_FLOWS_DEDUPE",
		apply:   func(cfg *Config, v any) { cfg.Flows.Dedupe = v.(bool) },
		extract: func(cfg Config) any { return cfg.Flows.Dedupe },
	},
	{
		key: "leads.function_url", typ: kString, env: "BRANDFLOW_LEADS_FUNCTION_URL",
		apply:   func(cfg *Config, v any) { cfg.Leads.FunctionURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Leads.FunctionURL },
	},
	{
		key: "leads.project_id", typ: kString, env: "BRANDFLOW_LEADS_PROJECT_ID",
		apply:   func(cfg *Config, v any) { cfg.Leads.ProjectID = v.(string) },
		extract: func(cfg Config) any { return cfg.Leads.ProjectID },
	},
	{
		key: "api.token", typ: kString, env: "BRANDFLOW_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "telemetry.metrics_enabled", typ: kBool, env: "BRANDFLOW_TELEMETRY_METRICS_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Telemetry.MetricsEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Telemetry.MetricsEnabled },
	},
	{
		key: "telemetry.trace_stdout", typ: kBool, env: "BRANDFLOW_TELEMETRY_TRACE_STDOUT",
		apply:   func(cfg *Config, v any) { cfg.Telemetry.TraceStdout = v.(bool) },
		extract: func(cfg Config) any { return cfg.Telemetry.TraceStdout },
	},
}

// coerce converts a raw file or environment value to the key's type.
func coerce(typ keyType, raw any) (any, error) {
	switch typ {
	case kInt:
		return cast.ToIntE(raw)
	case kBool:
		return cast.ToBoolE(raw)
	case kDuration:
		return cast.ToDurationE(raw)
	default:
		return cast.ToStringE(raw)
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok := b.Get(s.key)
		if !ok {
			continue
		}
		v, err := coerce(s.typ, raw)
		if err != nil {
			return fmt.Errorf("reading %s: invalid %s %v: %w", s.key, s.typ, raw, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := coerce(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from env var %s=%q: %v. Using default value.\n", s.typ, s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
