package decision

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/fuser/internal/ir"
	"github.com/roach88/fuser/internal/registry"
)

// DefaultTimeout bounds a single decision when none is configured.
const DefaultTimeout = 30 * time.Second

// Client is the model transport. It returns the raw response text.
type Client interface {
	Complete(ctx context.Context, prompt string, catalog Catalog) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string, catalog Catalog) (string, error)

// Complete implements Client.
func (f ClientFunc) Complete(ctx context.Context, prompt string, catalog Catalog) (string, error) {
	return f(ctx, prompt, catalog)
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithTimeout sets the overall decision deadline.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock sets the clock used for decision timings.
func WithClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// Adapter is the single-flight decision engine.
type Adapter struct {
	client   Client
	schema   *Schema
	registry *registry.Registry
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	inFlight atomic.Bool
}

// NewAdapter creates an adapter. reg may be nil when timings are not observed.
func NewAdapter(client Client, schema *Schema, reg *registry.Registry, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		client:   client,
		schema:   schema,
		registry: reg,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Catalog returns the commands offered to the model.
func (a *Adapter) Catalog() Catalog {
	return a.schema.Catalog()
}

// Ask sends the prompt and returns the validated decision.
//
// A second Ask while one is in flight fails immediately with ErrCodeBusy and
// leaves the cycle timings untouched. Every other outcome records both
// DecisionStart and DecisionEnd.
func (a *Adapter) Ask(ctx context.Context, prompt string) (ir.Decision, error) {
	if !a.inFlight.CompareAndSwap(false, true) {
		return ir.Decision{}, &Error{Code: ErrCodeBusy, Message: "decision already in flight"}
	}
	defer a.inFlight.Store(false)

	start := a.now()
	if a.registry != nil {
		a.registry.MarkDecisionStart(start)
	}

	d, err := a.ask(ctx, prompt)

	end := a.now()
	if a.registry != nil {
		a.registry.MarkDecisionEnd(end)
	}

	if err != nil {
		a.logger.Warn("decision failed", "error", err, "latency", end.Sub(start))
		return ir.Decision{}, err
	}
	a.logger.Debug("decision complete", "commands", d.Len(), "latency", end.Sub(start))
	return d, nil
}

func (a *Adapter) ask(ctx context.Context, prompt string) (ir.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.client.Complete(ctx, prompt, a.schema.Catalog())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ir.Decision{}, &Error{Code: ErrCodeTimeout, Message: "decision timed out", Err: err}
		}
		return ir.Decision{}, &Error{Code: ErrCodeTransport, Message: "model request failed", Err: err}
	}

	d, err := a.schema.Parse([]byte(raw))
	if err != nil {
		return ir.Decision{}, &Error{Code: ErrCodeSchema, Message: "invalid model response", Err: err}
	}
	return d, nil
}
