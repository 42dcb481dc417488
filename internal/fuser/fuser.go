package fuser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/fuser/internal/action"
	"github.com/roach88/fuser/internal/cadence"
	"github.com/roach88/fuser/internal/decision"
	"github.com/roach88/fuser/internal/input"
	"github.com/roach88/fuser/internal/ir"
	"github.com/roach88/fuser/internal/registry"
)

// DefaultPollTimeout bounds one source's poll step.
const DefaultPollTimeout = 2 * time.Second

var (
	// ErrAlreadyRunning is returned by Run when another Run is active.
	ErrAlreadyRunning = errors.New("fuser: already running")

	// ErrCycleInFlight is returned when a cycle is requested while one is
	// still in progress.
	ErrCycleInFlight = errors.New("fuser: cycle already in flight")
)

// Decider turns a prompt into a validated decision.
type Decider interface {
	Ask(ctx context.Context, prompt string) (ir.Decision, error)
	Catalog() decision.Catalog
}

// Dispatcher executes the commands of one decision.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmds []ir.Command) action.Report
}

// Option configures a Fuser.
type Option func(*Fuser)

// WithPollTimeout bounds each source's poll step. Non-positive values are
// ignored.
func WithPollTimeout(d time.Duration) Option {
	return func(f *Fuser) {
		if d > 0 {
			f.pollTimeout = d
		}
	}
}

// WithRecorder persists every cycle report.
func WithRecorder(r Recorder) Option {
	return func(f *Fuser) {
		f.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fuser) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithIDGenerator sets the cycle ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(f *Fuser) {
		if g != nil {
			f.ids = g
		}
	}
}

// WithClock sets the cycle sequence clock.
func WithClock(c *Clock) Option {
	return func(f *Fuser) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithNow sets the wall clock used for cycle timestamps.
func WithNow(now func() time.Time) Option {
	return func(f *Fuser) {
		if now != nil {
			f.now = now
		}
	}
}

// WithPromptBuilder sets how prompts are assembled.
func WithPromptBuilder(p PromptBuilder) Option {
	return func(f *Fuser) {
		f.prompt = p
	}
}

// Fuser drives the fusion cycle over a fixed set of sources.
//
// Thread-safety: Run and RunCycle may be called from any goroutine but at most
// one cycle executes at a time. Phase is safe to read concurrently.
type Fuser struct {
	sources    []*slot
	decider    Decider
	dispatcher Dispatcher
	registry   *registry.Registry
	cadence    *cadence.Controller

	pollTimeout time.Duration
	recorder    Recorder
	logger      *slog.Logger
	ids         IDGenerator
	clock       *Clock
	now         func() time.Time
	prompt      PromptBuilder

	running atomic.Bool
	inCycle atomic.Bool
	phase   atomic.Int32
}

// slot tracks one source and whether its last poll step is still running.
type slot struct {
	src  input.Source
	busy atomic.Bool
}

// New creates a Fuser. Sources are polled concurrently and formatted in the
// order given; names must be unique.
func New(sources []input.Source, decider Decider, dispatcher Dispatcher, reg *registry.Registry, cad *cadence.Controller, opts ...Option) (*Fuser, error) {
	if decider == nil {
		return nil, errors.New("fuser: decider is required")
	}
	if dispatcher == nil {
		return nil, errors.New("fuser: dispatcher is required")
	}
	if reg == nil {
		return nil, errors.New("fuser: registry is required")
	}
	if cad == nil {
		return nil, errors.New("fuser: cadence controller is required")
	}

	seen := make(map[string]bool, len(sources))
	slots := make([]*slot, 0, len(sources))
	for i, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("fuser: source %d is nil", i)
		}
		name := src.Name()
		if name == "" {
			return nil, fmt.Errorf("fuser: source %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("fuser: duplicate source %q", name)
		}
		seen[name] = true
		slots = append(slots, &slot{src: src})
	}

	f := &Fuser{
		sources:     slots,
		decider:     decider,
		dispatcher:  dispatcher,
		registry:    reg,
		cadence:     cad,
		pollTimeout: DefaultPollTimeout,
		logger:      slog.Default(),
		ids:         UUIDv7Generator{},
		clock:       NewClock(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Phase returns the current orchestrator state.
func (f *Fuser) Phase() Phase {
	return Phase(f.phase.Load())
}

// Sources returns the source names in formatting order.
func (f *Fuser) Sources() []string {
	names := make([]string, len(f.sources))
	for i, s := range f.sources {
		names[i] = s.src.Name()
	}
	return names
}

func (f *Fuser) setPhase(p Phase) {
	f.phase.Store(int32(p))
}

// Run loops idle wait and cycle until ctx is done, then returns ctx.Err().
// Cycle faults are logged and never end the loop.
func (f *Fuser) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer f.running.Store(false)

	f.logger.Info("fuser starting",
		"sources", f.Sources(),
		"interval", f.cadence.Interval(),
		"poll_timeout", f.pollTimeout)

	for {
		f.setPhase(PhaseIdle)
		skipped, err := f.cadence.Wait(ctx)
		if err != nil {
			f.logger.Info("fuser stopping", "reason", err, "cycles", f.clock.Current())
			return err
		}

		report, err := f.cycle(ctx, skipped)
		if err != nil {
			if ctx.Err() != nil {
				f.logger.Info("fuser stopping", "reason", ctx.Err(), "cycles", f.clock.Current())
				return ctx.Err()
			}
			// log and continue
			f.logger.Warn("cycle failed", "error", err)
			continue
		}
		f.logger.Debug("cycle complete",
			"cycle", report.ID,
			"seq", report.Seq,
			"idle", report.Idle,
			"commands", report.Decision.Len(),
			"latency", report.Timings.DecisionLatency())
	}
}

// RunCycle executes one cycle immediately, without the idle wait.
func (f *Fuser) RunCycle(ctx context.Context) (CycleReport, error) {
	return f.cycle(ctx, false)
}

func (f *Fuser) cycle(ctx context.Context, skipped bool) (CycleReport, error) {
	if !f.inCycle.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInFlight
	}
	defer func() {
		f.setPhase(PhaseIdle)
		f.inCycle.Store(false)
	}()

	report := CycleReport{
		ID:          f.ids.Generate(),
		Seq:         f.clock.Next(),
		Started:     f.now(),
		SkippedWait: skipped,
	}
	logger := f.logger.With("cycle", report.ID, "seq", report.Seq)

	f.setPhase(PhasePolling)
	report.Faults = f.poll(ctx, logger)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	f.setPhase(PhaseFormatting)
	report.Inputs, report.Body = f.format(logger)
	if len(report.Inputs) == 0 {
		report.Idle = true
		f.record(ctx, logger, report)
		return report, nil
	}
	f.registry.MarkFuseEnd(f.now())

	report.Prompt = f.prompt.Build(report.Body, f.decider.Catalog())
	f.registry.SetPrompt(report.Prompt)
	if h, err := ir.PromptHash(report.Prompt); err != nil {
		logger.Warn("prompt hash failed", "error", err)
	} else {
		report.PromptHash = h
	}

	f.setPhase(PhaseDeciding)
	d, err := f.decider.Ask(ctx, report.Prompt)
	report.Timings = f.registry.Timings()
	if err != nil {
		// zero commands; the cycle still completes
		report.DecisionErr = err
		logger.Warn("decision failed, dispatching nothing", "error", err)
		f.record(ctx, logger, report)
		return report, nil
	}
	report.Decision = d
	if h, err := ir.DecisionHash(d); err != nil {
		logger.Warn("decision hash failed", "error", err)
	} else {
		report.DecisionHash = h
	}

	f.setPhase(PhaseDispatching)
	report.Dispatch = f.dispatcher.Dispatch(ctx, d.Commands)
	f.record(ctx, logger, report)
	return report, nil
}

// poll steps every source concurrently and returns the faults in source order.
func (f *Fuser) poll(ctx context.Context, logger *slog.Logger) []SourceFault {
	errs := make([]error, len(f.sources))

	var g errgroup.Group
	for i, s := range f.sources {
		g.Go(func() error {
			errs[i] = f.step(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	var faults []SourceFault
	for i, err := range errs {
		if err == nil {
			continue
		}
		name := f.sources[i].src.Name()
		// log and continue
		logger.Warn("source contributed nothing this cycle", "source", name, "error", err)
		faults = append(faults, SourceFault{Source: name, Err: err})
	}
	return faults
}

// step runs one source's poll step under the poll timeout. A step that
// overruns is abandoned; the source is skipped until it returns.
func (f *Fuser) step(ctx context.Context, s *slot) error {
	if !s.busy.CompareAndSwap(false, true) {
		return errors.New("previous poll still running")
	}

	ctx, cancel := context.WithTimeout(ctx, f.pollTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer s.busy.Store(false)
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("poll panic: %v", r)
			}
		}()
		done <- s.src.Step(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		return fmt.Errorf("poll exceeded %s: %w", f.pollTimeout, ctx.Err())
	}
}

// format renders every source in registration order.
func (f *Fuser) format(logger *slog.Logger) ([]FusedInput, string) {
	var (
		inputs []FusedInput
		b      strings.Builder
	)
	for _, s := range f.sources {
		text, ok := formatLatest(s.src, logger)
		if !ok || text == "" {
			continue
		}
		inputs = append(inputs, FusedInput{Source: s.src.Name(), Text: text})
		b.WriteString(text)
	}
	return inputs, b.String()
}

func formatLatest(src input.Source, logger *slog.Logger) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("format panic", "source", src.Name(), "panic", r)
			text, ok = "", false
		}
	}()
	return src.FormatLatest()
}

func (f *Fuser) record(ctx context.Context, logger *slog.Logger, r CycleReport) {
	if f.recorder == nil {
		return
	}
	// The trace outlives cancellation of the loop that produced it.
	if err := f.recorder.RecordCycle(context.WithoutCancel(ctx), r); err != nil {
		// log and continue
		logger.Warn("record cycle failed", "error", err)
	}
}
