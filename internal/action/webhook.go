package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// WebhookPoster posts each input as JSON to an HTTP endpoint and returns the
// input unchanged. Repeated failures open a circuit breaker so a dead endpoint
// fails fast instead of stalling dispatch.
type WebhookPoster[T any] struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewWebhookPoster creates a poster. client and logger may be nil.
func NewWebhookPoster[T any](name, url string, client *http.Client, logger *slog.Logger) *WebhookPoster[T] {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("webhook", name)
	return &WebhookPoster[T]{
		url:    url,
		client: client,
		logger: logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Info("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Execute implements Implementation.
func (p *WebhookPoster[T]) Execute(ctx context.Context, in T) (T, error) {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.post(ctx, in)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return in, nil
}

func (p *WebhookPoster[T]) post(ctx context.Context, in T) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: status %d: %s", p.url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	p.logger.Debug("webhook delivered", "status", resp.StatusCode)
	return nil
}
