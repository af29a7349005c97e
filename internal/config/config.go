// Package config loads and validates browseriq configuration. Values come
// from built-in defaults, an optional YAML file, and BROWSERIQ_* environment
// overrides, in that order of precedence (later wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted by Validate. The provider set is closed: anything
// else is a configuration error, never a silent default.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config holds all browseriq configuration.
type Config struct {
	// Master switch; when false StartMonitoring refuses to run.
	MonitoringEnabled bool `yaml:"monitoring_enabled"`

	// LLM backend selection and credentials.
	Provider string `yaml:"provider"` // openai, ollama
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`

	// Ollama-specific settings.
	OllamaBaseURL string `yaml:"ollama_base_url"`
	OllamaModel   string `yaml:"ollama_model"`

	// Request budget shared by both providers.
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`

	// Background analysis loop.
	RealtimeSuggestionsEnabled bool          `yaml:"realtime_suggestions_enabled"`
	AnalysisInterval           time.Duration `yaml:"analysis_interval"`
	BatchSize                  int           `yaml:"batch_size"`

	// Report sink output directory.
	ReportDir string `yaml:"report_dir"`

	// Prometheus exposition address, e.g. ":9090". Empty disables the
	// metrics endpoint; collectors still count either way.
	MetricsAddr string `yaml:"metrics_addr"`

	// Logging.
	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`
	Debug    bool   `yaml:"debug"`
}

// Default returns the built-in configuration: local Ollama provider, same
// budget the hosted defaults use.
func Default() *Config {
	return &Config{
		MonitoringEnabled:          true,
		Provider:                   ProviderOllama,
		BaseURL:                    "https://api.openai.com/v1",
		Model:                      "gpt-4",
		OllamaBaseURL:              "http://localhost:11434",
		OllamaModel:                "mistral:latest",
		Timeout:                    60 * time.Second,
		MaxRetries:                 3,
		RealtimeSuggestionsEnabled: true,
		AnalysisInterval:           30 * time.Second,
		BatchSize:                  10,
		ReportDir:                  "monitoring-reports",
		LogDir:                     "logs",
		LogLevel:                   "info",
	}
}

// Load reads configuration from an optional YAML file path, then applies
// environment overrides and validates. An empty path or a missing file
// yields the defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments adjust a file-based config
// without editing it.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BROWSERIQ_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("BROWSERIQ_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.APIKey == "" {
		c.APIKey = v
	}
	if v := os.Getenv("BROWSERIQ_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("BROWSERIQ_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("BROWSERIQ_OLLAMA_URL"); v != "" {
		c.OllamaBaseURL = v
	}
	if v := os.Getenv("BROWSERIQ_OLLAMA_MODEL"); v != "" {
		c.OllamaModel = v
	}
	if v := os.Getenv("BROWSERIQ_MONITORING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.MonitoringEnabled = b
		}
	}
	if v := os.Getenv("BROWSERIQ_REALTIME_SUGGESTIONS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.RealtimeSuggestionsEnabled = b
		}
	}
	if v := os.Getenv("BROWSERIQ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Timeout = d
		}
	}
	if v := os.Getenv("BROWSERIQ_ANALYSIS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.AnalysisInterval = d
		}
	}
	if v := os.Getenv("BROWSERIQ_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("BROWSERIQ_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BatchSize = n
		}
	}
	if v := os.Getenv("BROWSERIQ_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("BROWSERIQ_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
}

// Validate rejects configurations that cannot produce a working monitor.
// Provider validation happens here, at construction time, so a bad provider
// name never reaches the client factory.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unsupported LLM provider: %q (supported: %s, %s)",
			c.Provider, ProviderOpenAI, ProviderOllama)
	}
	if c.Provider == ProviderOpenAI && c.APIKey == "" {
		return fmt.Errorf("provider %s requires an API key (set BROWSERIQ_API_KEY or OPENAI_API_KEY)", ProviderOpenAI)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive, got %d", c.MaxRetries)
	}
	if c.RealtimeSuggestionsEnabled {
		if c.AnalysisInterval <= 0 {
			return fmt.Errorf("analysis_interval must be positive, got %v", c.AnalysisInterval)
		}
		if c.BatchSize <= 0 {
			return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
		}
	}
	return nil
}
