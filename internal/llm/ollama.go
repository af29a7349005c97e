package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"browseriq/internal/config"
	"browseriq/internal/logging"
)

// OllamaClient talks to a local Ollama server via its generate API.
type OllamaClient struct {
	baseURL    string
	model      string
	maxRetries int
	httpClient *http.Client
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaClient creates a client from validated configuration.
func NewOllamaClient(cfg *config.Config) *OllamaClient {
	return &OllamaClient{
		baseURL:    strings.TrimRight(cfg.OllamaBaseURL, "/"),
		model:      cfg.OllamaModel,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Analyze generates a completion for the prompt pair. The system prompt is
// folded into the generate prompt since the generate API has no message
// roles. Pulls the model first when it is not present locally.
func (c *OllamaClient) Analyze(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if !c.modelPresent(ctx) {
		c.pullModel(ctx)
	}

	var full strings.Builder
	if strings.TrimSpace(systemPrompt) != "" {
		full.WriteString("SYSTEM: ")
		full.WriteString(systemPrompt)
		full.WriteString("\n\n")
	}
	full.WriteString("USER: ")
	full.WriteString(prompt)

	reqBody := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: full.String(),
		Stream: false,
		Format: "json",
		Options: ollamaOptions{
			Temperature: 0.3,
			TopP:        0.9,
			NumPredict:  2000,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	return doWithRetry(ctx, "ollama", c.maxRetries, func() (string, error) {
		return c.generate(ctx, payload)
	})
}

func (c *OllamaClient) generate(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	if parsed.Error != "" {
		return "", backoff.Permanent(fmt.Errorf("ollama API error: %s", parsed.Error))
	}

	content := strings.TrimSpace(parsed.Response)
	if content == "" {
		return "", backoff.Permanent(fmt.Errorf("empty content in ollama response"))
	}
	return content, nil
}

// IsAvailable checks that the Ollama server answers its tags endpoint.
func (c *OllamaClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LLMDebug("ollama availability check failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// modelPresent reports whether the configured model is already local.
func (c *OllamaClient) modelPresent(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LLMDebug("failed to check model availability: %v", err)
		return false
	}
	defer resp.Body.Close()

	var tags ollamaTagsResponse
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&tags) != nil {
		return false
	}
	for _, m := range tags.Models {
		if m.Name == c.model {
			return true
		}
	}
	return false
}

// pullModel asks the server to fetch the model. Best effort: a failed pull
// only means the generate call will fail with a clearer error.
func (c *OllamaClient) pullModel(ctx context.Context) {
	logging.LLM("model %s not found locally, attempting to pull", c.model)

	payload, err := json.Marshal(map[string]any{"name": c.model, "stream": false})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LLMError("error pulling model %s: %v", c.model, err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK {
		logging.LLM("successfully pulled model %s", c.model)
	} else {
		logging.LLMWarn("failed to pull model %s: HTTP %d", c.model, resp.StatusCode)
	}
}

// Close releases idle connections.
func (c *OllamaClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
