package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"NarrativeScorer/internal/config"
	"NarrativeScorer/internal/ports"
)

// OllamaClient talks to a local Ollama server through /api/chat.
type OllamaClient struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
}

var _ ports.ModelClient = (*OllamaClient)(nil)

// NewOllamaClient creates a reusable HTTP client. Endpoint is the server
// root, e.g. http://localhost:11434.
func NewOllamaClient(cfg config.ModelConfig) *OllamaClient {
	return &OllamaClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 2 * time.Minute},
	}
}

// Complete sends the messages with streaming disabled.
func (c *OllamaClient) Complete(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	if c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("ollama client misconfigured: %w", ports.ErrModelBadRequest)
	}

	payload := map[string]any{
		"model":    c.model,
		"messages": toWire(messages),
		"stream":   false,
		"options":  map[string]any{"temperature": 0},
	}

	var resp struct {
		Message chatMessage `json:"message"`
	}
	if err := c.post(ctx, "/api/chat", payload, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError("ollama", err)
	}

	if err := statusError("ollama", resp); err != nil {
		_ = resp.Body.Close()
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}

// NewClient picks the adapter named by cfg.Provider.
func NewClient(cfg config.ModelConfig) (ports.ModelClient, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewChatGPTClient(cfg), nil
	case config.ProviderOllama:
		return NewOllamaClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
