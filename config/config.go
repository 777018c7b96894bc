// Package config loads runtime settings from the environment with an
// optional YAML file overlay. Environment variables win over the file, the
// file wins over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use human-readable
// values like "30m" or "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full runtime configuration.
type Config struct {
	// Provider selects the model adapter: "openai", "anthropic" or "mock".
	Provider string `yaml:"provider"`
	// Model is the chat model name passed to the provider.
	Model string `yaml:"model"`
	// APIKey authenticates against the provider. Empty keys are accepted so
	// the mock provider and tests run without credentials.
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the provider endpoint, e.g. for gateways.
	BaseURL string `yaml:"base_url"`

	// EmbeddingModel names the embedding model; "local" selects the
	// hash-based embedder.
	EmbeddingModel string `yaml:"embedding_model"`

	// StorePath is the sqlite file backing the key-value store.
	StorePath string `yaml:"store_path"`
	// IndexPath is the sqlite file backing the vector index.
	IndexPath string `yaml:"index_path"`

	// PlanTTL bounds how long a drafted plan stays confirmable.
	PlanTTL Duration `yaml:"plan_ttl"`
	// SandboxTimeout bounds one script execution.
	SandboxTimeout Duration `yaml:"sandbox_timeout"`
	// HistoryLimit is how many trailing turns feed the prompts.
	HistoryLimit int `yaml:"history_limit"`
	// SearchK is how many knowledge hits each request retrieves.
	SearchK int `yaml:"search_k"`

	// HTTPAddr is the listen address of the HTTP API.
	HTTPAddr string `yaml:"http_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFormat is "json" or "text".
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		EmbeddingModel: "local",
		StorePath:      "data/pilot.db",
		IndexPath:      "data/index.db",
		PlanTTL:        Duration(30 * time.Minute),
		SandboxTimeout: Duration(10 * time.Second),
		HistoryLimit:   8,
		SearchK:        5,
		HTTPAddr:       ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Provider, "PILOT_PROVIDER")
	setString(&c.Model, "PILOT_MODEL")
	setString(&c.APIKey, "PILOT_API_KEY")
	setString(&c.BaseURL, "PILOT_BASE_URL")
	setString(&c.EmbeddingModel, "PILOT_EMBEDDING_MODEL")
	setString(&c.StorePath, "PILOT_STORE_PATH")
	setString(&c.IndexPath, "PILOT_INDEX_PATH")
	setDuration(&c.PlanTTL, "PILOT_PLAN_TTL")
	setDuration(&c.SandboxTimeout, "PILOT_SANDBOX_TIMEOUT")
	setInt(&c.HistoryLimit, "PILOT_HISTORY_LIMIT")
	setInt(&c.SearchK, "PILOT_SEARCH_K")
	setString(&c.HTTPAddr, "PILOT_HTTP_ADDR")
	setString(&c.LogLevel, "PILOT_LOG_LEVEL")
	setString(&c.LogFormat, "PILOT_LOG_FORMAT")
}

func (c *Config) validate() error {
	switch c.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.PlanTTL <= 0 {
		return fmt.Errorf("plan_ttl must be positive")
	}
	if c.SandboxTimeout <= 0 {
		return fmt.Errorf("sandbox_timeout must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
