package sources

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/roach88/fuser/internal/input"
	"github.com/roach88/fuser/internal/ir"
)

// Runner is an input source with a background acquisition loop.
type Runner interface {
	input.Source

	// Run acquires data until ctx is done. It returns nil on cancellation.
	Run(ctx context.Context) error
}

// Option configures an adapter.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
	now    func() time.Time
	client *http.Client
}

func newSettings(opts []Option) settings {
	s := settings{
		logger: slog.Default(),
		now:    time.Now,
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the acquisition clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHTTPClient sets the HTTP client used by REST and JSON-RPC adapters.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.client = c
		}
	}
}

// passRecord is the converter for adapters whose queue already carries
// stamped records.
func passRecord(r ir.Record) (ir.Record, bool) {
	return r, r.Value != ""
}

// newBreaker trips after consecutive failures and logs state transitions.
func newBreaker(name string, failures uint32, cooldown time.Duration, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// sleepCtx waits d or until ctx is done, reporting whether the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
