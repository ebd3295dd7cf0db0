// Package config holds the Rook configuration, loaded once at process start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Rook configuration.
type Config struct {
	// Backend (LLM) configuration
	Backend BackendConfig `yaml:"backend"`

	// Retry/rotation settings
	Retry RetryConfig `yaml:"retry"`

	// Token budgets
	Tokens TokenConfig `yaml:"tokens"`

	// Email draft generation
	Email EmailConfig `yaml:"email"`

	// Storage paths
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig configures the language-model backend.
type BackendConfig struct {
	// Keys is the comma-joined credential list (MULTI_GEMINI_KEYS).
	Keys    string `yaml:"keys"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
	// Transport selects the invoker: "sdk" (google.golang.org/genai) or "http".
	Transport string `yaml:"transport"`
}

// RetryConfig configures the retry/rotation orchestrator.
type RetryConfig struct {
	MaxRetries  int    `yaml:"max_retries"`
	BackoffBase string `yaml:"backoff_base"`
}

// TokenConfig configures per-call token budgets.
type TokenConfig struct {
	MaxOutput   int     `yaml:"max_output"`
	Repair      int     `yaml:"repair"`
	Temperature float64 `yaml:"temperature"`
}

// EmailConfig configures the multi-draft generator.
type EmailConfig struct {
	Workers      int `yaml:"workers"`
	WorkerTokens int `yaml:"worker_tokens"`
	MergeTokens  int `yaml:"merge_tokens"`
}

// StoreConfig configures decision persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	LogsDir      string `yaml:"logs_dir"`
}

// LoggingConfig configures categorized logging.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Model:     "gemini-2.5-flash",
			BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
			Timeout:   "60s",
			Transport: "sdk",
		},
		Retry: RetryConfig{
			MaxRetries:  4,
			BackoffBase: "800ms",
		},
		Tokens: TokenConfig{
			MaxOutput:   1024,
			Repair:      200,
			Temperature: 0.2,
		},
		Email: EmailConfig{
			Workers:      3,
			WorkerTokens: 250,
			MergeTokens:  400,
		},
		Store: StoreConfig{
			DatabasePath: filepath.Join(".rook", "decisions.db"),
			LogsDir:      "logs",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from <dir>/.rook/config.yaml.
// A missing file is not an error; defaults plus env overrides apply.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(dir, ".rook", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if keys := os.Getenv("MULTI_GEMINI_KEYS"); keys != "" {
		c.Backend.Keys = keys
	}
	// Single-key fallback kept for backwards compatibility.
	if c.Backend.Keys == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.Backend.Keys = key
		}
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.Backend.Model = model
	}
	if v := os.Getenv("LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retry.MaxRetries = n
		}
	}
	if v := os.Getenv("LLM_BACKOFF_BASE"); v != "" {
		// Accept either a Go duration ("800ms") or bare seconds ("0.8").
		if _, err := time.ParseDuration(v); err == nil {
			c.Retry.BackoffBase = v
		} else if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Retry.BackoffBase = time.Duration(f * float64(time.Second)).String()
		}
	}
	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Tokens.MaxOutput = n
		}
	}
	if v := os.Getenv("LLM_REPAIR_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Tokens.Repair = n
		}
	}
	if v := os.Getenv("LLM_TEMP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Tokens.Temperature = f
		}
	}
	if v := os.Getenv("ROOK_DEBUG"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			c.Logging.Debug = true
		}
	}
	if path := os.Getenv("ROOK_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// KeyList splits the comma-joined credential list, dropping blanks.
func (c *Config) KeyList() []string {
	var keys []string
	for _, k := range strings.Split(c.Backend.Keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// BackendTimeout returns the backend call timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// BackoffBase returns the retry backoff base as a duration.
func (c *Config) BackoffBase() time.Duration {
	d, err := time.ParseDuration(c.Retry.BackoffBase)
	if err != nil {
		return 800 * time.Millisecond
	}
	return d
}
