package input

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/fuser/internal/cadence"
	"github.com/roach88/fuser/internal/ir"
	"github.com/roach88/fuser/internal/registry"
)

// Construction errors.
var (
	ErrPolicyUnset    = errors.New("input: buffer policy must be set explicitly")
	ErrRetentionUnset = errors.New("input: retention must be set explicitly")
	ErrNameRequired   = errors.New("input: name is required")
)

// Retention decides whether FormatLatest consumes the buffer.
type Retention int

const (
	// RetentionUnset is the zero value and is rejected at construction.
	RetentionUnset Retention = iota

	// ClearOnFormat empties the buffer after formatting so every record is
	// surfaced to the prompt exactly once.
	ClearOnFormat

	// Persist keeps the buffer so the latest known state is surfaced every
	// cycle.
	Persist
)

// String returns the configuration name of the retention mode.
func (r Retention) String() string {
	switch r {
	case ClearOnFormat:
		return "clear_on_format"
	case Persist:
		return "persist"
	}
	return "unset"
}

// ParseRetention converts a configuration name into a Retention.
func ParseRetention(s string) (Retention, error) {
	switch s {
	case "clear_on_format":
		return ClearOnFormat, nil
	case "persist":
		return Persist, nil
	}
	return RetentionUnset, fmt.Errorf("unknown retention %q", s)
}

// Source is the orchestrator-facing side of an input.
type Source interface {
	// Name is the unique registry key of the source.
	Name() string

	// Step runs poll, convert and absorb once. It must return within the
	// poller's bounded wait.
	Step(ctx context.Context) error

	// FormatLatest renders the buffer as a prompt block. ok is false when
	// there is nothing to show.
	FormatLatest() (text string, ok bool)
}

// Poller drains a producer. ok=false means nothing was ready within the
// poller's short fixed wait; it is not an error.
type Poller[R any] interface {
	Poll(ctx context.Context) (raw R, ok bool, err error)
}

// PollerFunc adapts a function to Poller.
type PollerFunc[R any] func(ctx context.Context) (R, bool, error)

// Poll implements Poller.
func (f PollerFunc[R]) Poll(ctx context.Context) (R, bool, error) {
	return f(ctx)
}

// Backlogger is implemented by pollers that can report undrained items.
type Backlogger interface {
	Backlog() int
}

// Converter turns raw producer output into a record. It must be pure;
// ok=false means "no usable data this cycle".
type Converter[R any] func(raw R) (rec ir.Record, ok bool)

// Spec declares an input's identity and buffer behaviour.
type Spec struct {
	// Name is the registry key (unique per runtime).
	Name string
	// Descriptor labels the prompt block; defaults to Name.
	Descriptor string
	// Policy is the buffer merge policy.
	Policy Policy
	// Retention decides whether formatting consumes the buffer.
	Retention Retention
}

// Option configures an Input.
type Option func(*options)

type options struct {
	cadence *cadence.Controller
}

// WithSkipHint lets the input ask the orchestrator to skip its idle wait when
// it knows unconsumed data is waiting.
func WithSkipHint(c *cadence.Controller) Option {
	return func(o *options) {
		o.cadence = c
	}
}

// Input adapts one producer to the Source contract.
type Input[R any] struct {
	spec     Spec
	poller   Poller[R]
	convert  Converter[R]
	registry *registry.Registry
	cadence  *cadence.Controller

	mu     sync.Mutex
	buffer *Buffer
}

// New creates an input. Policy and Retention must both be set.
func New[R any](spec Spec, poller Poller[R], convert Converter[R], reg *registry.Registry, opts ...Option) (*Input[R], error) {
	if spec.Name == "" {
		return nil, ErrNameRequired
	}
	if spec.Retention != ClearOnFormat && spec.Retention != Persist {
		return nil, fmt.Errorf("%s: %w", spec.Name, ErrRetentionUnset)
	}
	buf, err := NewBuffer(spec.Policy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Name, err)
	}
	if poller == nil || convert == nil {
		return nil, fmt.Errorf("%s: poller and converter are required", spec.Name)
	}
	if spec.Descriptor == "" {
		spec.Descriptor = spec.Name
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return &Input[R]{
		spec:     spec,
		poller:   poller,
		convert:  convert,
		registry: reg,
		cadence:  o.cadence,
		buffer:   buf,
	}, nil
}

// Name implements Source.
func (in *Input[R]) Name() string {
	return in.spec.Name
}

// Spec returns the input's declared identity and buffer behaviour.
func (in *Input[R]) Spec() Spec {
	return in.spec
}

// Poll drains the producer once.
func (in *Input[R]) Poll(ctx context.Context) (R, bool, error) {
	return in.poller.Poll(ctx)
}

// Convert applies the pure conversion.
func (in *Input[R]) Convert(raw R) (ir.Record, bool) {
	return in.convert(raw)
}

// Absorb merges rec into the buffer per the input's policy.
func (in *Input[R]) Absorb(rec ir.Record) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.buffer.Absorb(rec)
}

// Buffered returns a copy of the unconsumed records.
func (in *Input[R]) Buffered() []ir.Record {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.buffer.Records()
}

// Step implements Source: poll, convert and absorb in poll order.
func (in *Input[R]) Step(ctx context.Context) error {
	raw, ok, err := in.poller.Poll(ctx)
	if err != nil {
		return fmt.Errorf("poll %s: %w", in.spec.Name, err)
	}
	if !ok {
		// Persistent buffers are never "pending"; hinting on them would spin.
		in.mu.Lock()
		pending := in.spec.Retention == ClearOnFormat && in.buffer.Len() > 0
		in.mu.Unlock()
		if pending {
			in.hintSkip()
		}
		return nil
	}

	rec, ok := in.convert(raw)
	if !ok {
		return nil
	}
	in.Absorb(rec)

	if b, ok := in.poller.(Backlogger); ok && b.Backlog() > 0 {
		in.hintSkip()
	}
	return nil
}

// FormatLatest implements Source. A non-empty result is also written to the
// registry, stamped with the record's acquisition time.
func (in *Input[R]) FormatLatest() (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	rec, ok := in.buffer.Latest()
	if !ok {
		return "", false
	}

	text := Frame(in.spec.Descriptor, rec.Value)
	if in.registry != nil {
		in.registry.Add(in.spec.Name, rec.Value, rec.Timestamp)
	}
	if in.spec.Retention == ClearOnFormat {
		in.buffer.Clear()
	}
	return text, true
}

func (in *Input[R]) hintSkip() {
	if in.cadence != nil {
		in.cadence.RequestSkip()
	}
}
