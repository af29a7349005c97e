// Package llm provides the language-model backends used by the analysis
// engine: a hosted OpenAI-compatible client and a local Ollama client behind
// one interface. Provider selection happens once, at construction; an
// unknown provider is an error, never a fallback.
package llm

import (
	"context"
	"errors"
	"fmt"

	"browseriq/internal/config"
	"browseriq/internal/logging"
)

// ErrUnsupportedProvider is returned by New for provider names outside the
// supported set.
var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

// Client is a language-model backend. Implementations are safe for
// concurrent use.
type Client interface {
	// Analyze sends the prompt pair and returns the raw completion text.
	// Retries transient failures up to the configured budget; client errors
	// (4xx) fail immediately.
	Analyze(ctx context.Context, prompt, systemPrompt string) (string, error)

	// IsAvailable probes the backend with a cheap request.
	IsAvailable(ctx context.Context) bool

	// Close releases connections held by the client.
	Close() error
}

// New builds the client selected by cfg.Provider. Configuration has already
// been validated, but the factory re-checks so a hand-built Config cannot
// slip an unusable client into the monitor.
func New(cfg *config.Config) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		logging.LLM("using OpenAI provider: model=%s base=%s", cfg.Model, cfg.BaseURL)
		return NewOpenAIClient(cfg), nil
	case config.ProviderOllama:
		logging.LLM("using Ollama provider: model=%s base=%s", cfg.OllamaModel, cfg.OllamaBaseURL)
		return NewOllamaClient(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
