package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
	Temperature  float32

	// BaseURL overrides the API endpoint.
	BaseURL string
}

// DefaultGeminiConfig returns defaults for the Gemini API.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:       apiKey,
		Model:        "gemini-2.5-flash",
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  0.2,
	}
}

// GeminiClient implements Client with the Gemini structured-output API.
type GeminiClient struct {
	cfg    GeminiConfig
	client *genai.Client
	logger *slog.Logger
}

// NewGeminiClient creates a client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key not configured")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiConfig("").Model
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{cfg: cfg, client: client, logger: logger}, nil
}

// Complete implements Client.
func (c *GeminiClient) Complete(ctx context.Context, prompt string, catalog Catalog) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(c.cfg.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(c.cfg.Temperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    GeminiSchema(catalog),
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	c.logger.Debug("gemini completion", "model", c.cfg.Model, "response_len", len(text))
	return text, nil
}

// GeminiSchema returns the structured-output schema for the catalog.
func GeminiSchema(catalog Catalog) *genai.Schema {
	name := &genai.Schema{Type: genai.TypeString}
	if len(catalog) > 0 {
		name.Enum = catalog.Names()
	}
	argument := &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"value"},
		Properties: map[string]*genai.Schema{
			"value": {Type: genai.TypeString},
		},
	}
	command := &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"name", "arguments"},
		Properties: map[string]*genai.Schema{
			"name":      name,
			"arguments": {Type: genai.TypeArray, Items: argument},
		},
	}
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"commands"},
		Properties: map[string]*genai.Schema{
			"commands": {Type: genai.TypeArray, Items: command},
		},
	}
}
