package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultSystemPrompt frames every decision request.
const DefaultSystemPrompt = "You are the decision layer of an embodied agent. " +
	"Read the fused sensor inputs and choose the commands the agent should run next."

// OpenAIConfig configures the chat completions client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	MaxRetries   int
	RetryBackoff time.Duration
	MinSpacing   time.Duration
}

// DefaultOpenAIConfig returns defaults for the public OpenAI endpoint.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:       apiKey,
		BaseURL:      "https://api.openai.com/v1",
		Model:        "gpt-4o-mini",
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  0.2,
		MaxTokens:    1024,
		MaxRetries:   3,
		RetryBackoff: time.Second,
		MinSpacing:   100 * time.Millisecond,
	}
}

// OpenAIClient implements Client over the chat completions API with strict
// structured output.
type OpenAIClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewOpenAIClient creates a client. httpClient may be nil.
func NewOpenAIClient(cfg OpenAIConfig, httpClient *http.Client, logger *slog.Logger) *OpenAIClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &OpenAIClient{cfg: cfg, httpClient: httpClient, logger: logger}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIJSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements Client. Rate limits and transient failures are retried
// with exponential backoff.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, catalog Catalog) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("openai: API key not configured")
	}

	c.space()

	payload, err := json.Marshal(openAIRequest{
		Model: c.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   "decision",
				Strict: true,
				Schema: catalog.JSONSchema(),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return "", err
			}
		}

		text, retry, err := c.do(ctx, payload)
		if err == nil {
			c.logger.Debug("openai completion", "model", c.cfg.Model, "attempt", attempt, "latency", time.Since(start), "response_len", len(text))
			return text, nil
		}
		if !retry || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
		c.logger.Warn("openai request failed, retrying", "attempt", attempt, "error", err)
	}
	return "", fmt.Errorf("openai: max retries exceeded: %w", lastErr)
}

// do performs one request and reports whether a failure is retryable.
func (c *OpenAIClient) do(ctx context.Context, payload []byte) (string, bool, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("openai: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("openai: rate limit exceeded (429)")
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("openai: server error %d: %s", resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("openai: request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out openAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, fmt.Errorf("openai: parse response: %w", err)
	}
	if out.Error != nil {
		return "", false, fmt.Errorf("openai: API error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", false, fmt.Errorf("openai: no completion returned")
	}
	if r := out.Choices[0].Message.Refusal; r != "" {
		return "", false, fmt.Errorf("openai: model refused: %s", r)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), false, nil
}

// space enforces a minimum gap between requests.
func (c *OpenAIClient) space() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elapsed := time.Since(c.lastRequest); elapsed < c.cfg.MinSpacing {
		time.Sleep(c.cfg.MinSpacing - elapsed)
	}
	c.lastRequest = time.Now()
}

func (c *OpenAIClient) backoff(ctx context.Context, attempt int) error {
	t := time.NewTimer(c.cfg.RetryBackoff * time.Duration(1<<uint(attempt-1)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
