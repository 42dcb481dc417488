package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/fuser/internal/ir"
)

// Dispatch defaults.
const (
	// DefaultHandlerTimeout bounds one handler invocation.
	DefaultHandlerTimeout = 10 * time.Second

	// DefaultConcurrency caps handlers running at once in Concurrent mode.
	DefaultConcurrency = 8
)

// Status is the result of dispatching one command.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusUnknown Status = "unknown"
)

// Outcome records one command's dispatch.
type Outcome struct {
	Command  ir.Command
	Status   Status
	Output   any
	Err      error
	Duration time.Duration
}

// Report lists outcomes in decision order.
type Report struct {
	Outcomes []Outcome
}

// Count returns the number of outcomes with the given status.
func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Simulator consumes a whole decision batch after the handlers ran.
type Simulator interface {
	Name() string
	Sim(ctx context.Context, cmds []ir.Command) error
}

// Mode selects how handlers of one batch are scheduled.
type Mode int

const (
	// Concurrent launches handlers in decision order without waiting for
	// earlier ones to finish.
	Concurrent Mode = iota

	// Sequential runs handlers one after another in decision order.
	Sequential
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	if m == Sequential {
		return "sequential"
	}
	return "concurrent"
}

// ParseMode converts a configuration name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "concurrent":
		return Concurrent, nil
	case "sequential":
		return Sequential, nil
	}
	return Concurrent, fmt.Errorf("unknown dispatch mode %q", s)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMode sets the scheduling mode.
func WithMode(m Mode) DispatcherOption {
	return func(d *Dispatcher) { d.mode = m }
}

// WithConcurrency caps concurrently running handlers.
func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.limit = n
		}
	}
}

// WithHandlerTimeout bounds each handler invocation.
func WithHandlerTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithSimulators adds simulators that receive every batch.
func WithSimulators(sims ...Simulator) DispatcherOption {
	return func(d *Dispatcher) { d.simulators = append(d.simulators, sims...) }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher routes commands to handlers.
type Dispatcher struct {
	registry   *Registry
	simulators []Simulator
	mode       Mode
	limit      int
	timeout    time.Duration
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		mode:     Concurrent,
		limit:    DefaultConcurrency,
		timeout:  DefaultHandlerTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs every command of one decision. It never fails: unknown names,
// handler errors and panics are recorded in the report.
func (d *Dispatcher) Dispatch(ctx context.Context, cmds []ir.Command) Report {
	report := Report{Outcomes: make([]Outcome, len(cmds))}

	switch d.mode {
	case Sequential:
		for i, cmd := range cmds {
			report.Outcomes[i] = d.dispatchOne(ctx, cmd)
		}
	default:
		var g errgroup.Group
		g.SetLimit(d.limit)
		for i, cmd := range cmds {
			g.Go(func() error {
				report.Outcomes[i] = d.dispatchOne(ctx, cmd)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, sim := range d.simulators {
		d.simulate(ctx, sim, cmds)
	}
	return report
}

func (d *Dispatcher) dispatchOne(ctx context.Context, cmd ir.Command) Outcome {
	h, ok := d.registry.Lookup(cmd.Name)
	if !ok {
		d.logger.Warn("dropping unknown command", "command", cmd.String())
		return Outcome{Command: cmd, Status: StatusUnknown}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	out, err := invoke(ctx, h, cmd)
	o := Outcome{Command: cmd, Output: out, Err: err, Duration: time.Since(start), Status: StatusOK}
	if err != nil {
		o.Status = StatusFailed
		d.logger.Error("handler failed", "command", cmd.String(), "error", err)
	} else {
		d.logger.Debug("handler ok", "command", cmd.String(), "duration", o.Duration)
	}
	return o
}

func invoke(ctx context.Context, h Handler, cmd ir.Command) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, cmd)
}

func (d *Dispatcher) simulate(ctx context.Context, sim Simulator, cmds []ir.Command) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("simulator panic", "simulator", sim.Name(), "panic", r)
		}
	}()
	if err := sim.Sim(ctx, cmds); err != nil {
		d.logger.Error("simulator failed", "simulator", sim.Name(), "error", err)
	}
}
