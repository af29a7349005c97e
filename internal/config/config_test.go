package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Provider != ProviderOllama {
		t.Errorf("expected default provider ollama, got %q", cfg.Provider)
	}
	if cfg.OllamaModel != "mistral:latest" {
		t.Errorf("unexpected default ollama model %q", cfg.OllamaModel)
	}
	if cfg.OllamaBaseURL != "http://localhost:11434" {
		t.Errorf("unexpected default ollama url %q", cfg.OllamaBaseURL)
	}
	if cfg.Timeout != 60*time.Second || cfg.MaxRetries != 3 {
		t.Errorf("unexpected request budget: %v / %d", cfg.Timeout, cfg.MaxRetries)
	}
	if cfg.AnalysisInterval != 30*time.Second || cfg.BatchSize != 10 {
		t.Errorf("unexpected analysis loop defaults: %v / %d", cfg.AnalysisInterval, cfg.BatchSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be fatal: %v", err)
	}
	if cfg.Provider != ProviderOllama {
		t.Errorf("expected defaults, got provider %q", cfg.Provider)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browseriq.yaml")
	content := `
provider: openai
api_key: file-key
model: gpt-4o
timeout: 90s
batch_size: 25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != ProviderOpenAI || cfg.APIKey != "file-key" || cfg.Model != "gpt-4o" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("expected 90s timeout, got %v", cfg.Timeout)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("expected batch size 25, got %d", cfg.BatchSize)
	}
	// Untouched fields keep their defaults.
	if cfg.OllamaModel != "mistral:latest" {
		t.Errorf("default not preserved: %q", cfg.OllamaModel)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browseriq.yaml")
	if err := os.WriteFile(path, []byte("provider: ollama\nollama_model: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BROWSERIQ_OLLAMA_MODEL", "from-env")
	t.Setenv("BROWSERIQ_MAX_RETRIES", "7")
	t.Setenv("BROWSERIQ_MONITORING_ENABLED", "false")
	t.Setenv("BROWSERIQ_METRICS_ADDR", ":9091")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OllamaModel != "from-env" {
		t.Errorf("env should win over file, got %q", cfg.OllamaModel)
	}
	if cfg.MaxRetries != 7 {
		t.Errorf("expected retries 7, got %d", cfg.MaxRetries)
	}
	if cfg.MonitoringEnabled {
		t.Error("expected monitoring disabled via env")
	}
	if cfg.MetricsAddr != ":9091" {
		t.Errorf("expected metrics address from env, got %q", cfg.MetricsAddr)
	}
}

func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("BROWSERIQ_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "shared-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey != "shared-key" {
		t.Errorf("expected OPENAI_API_KEY fallback, got %q", cfg.APIKey)
	}

	// An explicit browseriq key takes precedence.
	t.Setenv("BROWSERIQ_API_KEY", "own-key")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey != "own-key" {
		t.Errorf("expected BROWSERIQ_API_KEY to win, got %q", cfg.APIKey)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown provider", func(c *Config) { c.Provider = "claude" }, "unsupported LLM provider"},
		{"openai without key", func(c *Config) { c.Provider = ProviderOpenAI; c.APIKey = "" }, "API key"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max_retries"},
		{"zero interval", func(c *Config) { c.AnalysisInterval = 0 }, "analysis_interval"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected %q in error, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateSkipsLoopFieldsWhenRealtimeDisabled(t *testing.T) {
	cfg := Default()
	cfg.RealtimeSuggestionsEnabled = false
	cfg.AnalysisInterval = 0
	cfg.BatchSize = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("loop fields should not be checked when realtime is off: %v", err)
	}
}
