package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"NarrativeScorer/internal/config"
	"NarrativeScorer/internal/ports"
)

// ChatGPTClient implements ports.ModelClient backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.ModelClient = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration. The gateway owns
// per-call timeouts; the HTTP timeout only guards against hung sockets.
func NewChatGPTClient(cfg config.ModelConfig) *ChatGPTClient {
	return &ChatGPTClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletion struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete posts the messages as one chat completion and returns the first
// choice's content.
func (c *ChatGPTClient) Complete(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil: %w", ports.ErrModelBadRequest)
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chatgpt client misconfigured: %w", ports.ErrModelUnauthorized)
	}

	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"messages":    toWire(messages),
		"temperature": 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError("chatgpt", err)
	}
	defer resp.Body.Close()

	if err := statusError("chatgpt", resp); err != nil {
		return "", err
	}

	var completion chatCompletion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chatgpt response has no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

func toWire(messages []ports.ChatMessage) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func transportError(vendor string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s request: %w", vendor, err)
	}
	return fmt.Errorf("%s request: %w: %v", vendor, ports.ErrModelUnavailable, err)
}

func trimBody(b []byte) string {
	return strings.TrimSpace(string(b))
}
