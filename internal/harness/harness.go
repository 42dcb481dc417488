package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/roach88/fuser/internal/action"
	"github.com/roach88/fuser/internal/cadence"
	"github.com/roach88/fuser/internal/decision"
	"github.com/roach88/fuser/internal/fuser"
	"github.com/roach88/fuser/internal/input"
	"github.com/roach88/fuser/internal/ir"
	"github.com/roach88/fuser/internal/registry"
	"github.com/roach88/fuser/internal/store"
	"github.com/roach88/fuser/internal/testutil"
)

var knownHandlers = map[string]bool{
	"speech": true,
	"tweet":  true,
	"move":   true,
	"face":   true,
	"wallet": true,
}

// scriptedSource is one scenario source plus the fault armed for the
// current cycle.
type scriptedSource struct {
	name  string
	in    *input.Input[string]
	fault string
}

// Harness runs one scenario against a freshly wired fuser.
type Harness struct {
	store   *store.Store
	fuser   *fuser.Fuser
	clock   *testutil.StepClock
	sources []*scriptedSource
	step    CycleStep
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory trace store. Every cycle step
// absorbs its records, arms its faults and reply, then runs exactly one
// fusion cycle.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(scenario, st)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult(scenario.Name)
	result.Sources = h.fuser.Sources()

	for i, step := range scenario.Cycles {
		trace, err := h.runCycle(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("cycle %d: %w", i+1, err)
		}
		result.Cycles = append(result.Cycles, trace)
		if step.Expect != nil {
			for _, msg := range checkExpect(trace, *step.Expect) {
				result.AddError(fmt.Sprintf("cycle %d: %s", i+1, msg))
			}
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, st *store.Store) (*Harness, error) {
	h := &Harness{
		store:   st,
		clock:   testutil.NewStepClock(testutil.Epoch, time.Millisecond),
		sources: make([]*scriptedSource, 0, len(scenario.Sources)),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	reg := registry.New()
	cad := cadence.New(time.Hour)

	sources := make([]input.Source, 0, len(scenario.Sources))
	for _, spec := range scenario.Sources {
		src, err := h.newSource(spec, reg)
		if err != nil {
			return nil, err
		}
		h.sources = append(h.sources, src)
		sources = append(sources, src.in)
	}

	handlers := action.NewRegistry()
	for _, hs := range scenario.Handlers {
		handler, err := bindHandler(hs)
		if err != nil {
			return nil, err
		}
		if err := handlers.Register(handler); err != nil {
			return nil, fmt.Errorf("register %s: %w", hs.Name, err)
		}
	}

	schema, err := decision.NewSchema(handlers.Catalog())
	if err != nil {
		return nil, fmt.Errorf("build decision schema: %w", err)
	}
	adapter := decision.NewAdapter(decision.ClientFunc(h.reply), schema, reg,
		decision.WithLogger(h.logger),
		decision.WithClock(h.clock.Now))

	dispatcher := action.NewDispatcher(handlers,
		action.WithMode(action.Sequential),
		action.WithLogger(h.logger))

	f, err := fuser.New(sources, adapter, dispatcher, reg, cad,
		fuser.WithLogger(h.logger),
		fuser.WithIDGenerator(testutil.NewSequentialIDs("cycle")),
		fuser.WithNow(h.clock.Now),
		fuser.WithPromptBuilder(fuser.PromptBuilder{System: scenario.System}),
		fuser.WithRecorder(st))
	if err != nil {
		return nil, fmt.Errorf("build fuser: %w", err)
	}
	h.fuser = f
	return h, nil
}

func (h *Harness) newSource(spec SourceSpec, reg *registry.Registry) (*scriptedSource, error) {
	policy, err := input.ParsePolicy(orDefault(spec.Policy, DefaultPolicy))
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", spec.Name, err)
	}
	retention, err := input.ParseRetention(orDefault(spec.Retention, DefaultRetention))
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", spec.Name, err)
	}

	src := &scriptedSource{name: spec.Name}
	poller := input.PollerFunc[string](func(context.Context) (string, bool, error) {
		if src.fault != "" {
			return "", false, errors.New(src.fault)
		}
		return "", false, nil
	})
	convert := func(raw string) (ir.Record, bool) {
		return ir.NewRecord(h.clock.Now(), raw), raw != ""
	}

	in, err := input.New(input.Spec{
		Name:       spec.Name,
		Descriptor: spec.Descriptor,
		Policy:     policy,
		Retention:  retention,
	}, poller, convert, reg)
	if err != nil {
		return nil, err
	}
	src.in = in
	return src, nil
}

// runCycle seeds the sources for step and runs one fusion cycle.
func (h *Harness) runCycle(ctx context.Context, step CycleStep) (CycleTrace, error) {
	h.step = step
	for _, src := range h.sources {
		src.fault = step.Faults[src.name]
		for _, raw := range step.Records[src.name] {
			if rec, ok := src.in.Convert(raw); ok {
				src.in.Absorb(rec)
			}
		}
	}

	report, err := h.fuser.RunCycle(ctx)
	if err != nil {
		return CycleTrace{}, err
	}
	return traceFromReport(report), nil
}

// reply answers the decision adapter with the current step's scripted response.
func (h *Harness) reply(context.Context, string, decision.Catalog) (string, error) {
	if h.step.ReplyError != "" {
		return "", errors.New(h.step.ReplyError)
	}
	return h.step.Reply, nil
}

func traceFromReport(r fuser.CycleReport) CycleTrace {
	t := CycleTrace{
		ID:       r.ID,
		Seq:      r.Seq,
		Idle:     r.Idle,
		Inputs:   []CycleInput{},
		Faults:   []CycleFault{},
		Commands: []CycleCommand{},
	}
	for _, in := range r.Inputs {
		t.Inputs = append(t.Inputs, CycleInput{Source: in.Source, Text: in.Text})
	}
	for _, f := range r.Faults {
		t.Faults = append(t.Faults, CycleFault{Source: f.Source, Error: f.Err.Error()})
	}
	if r.DecisionErr != nil {
		t.DecisionError = decisionErrorString(r.DecisionErr)
	}
	for _, o := range r.Dispatch.Outcomes {
		c := CycleCommand{
			Name:   o.Command.Name,
			Args:   o.Command.Values(),
			Status: string(o.Status),
		}
		if o.Err != nil {
			c.Error = o.Err.Error()
		}
		t.Commands = append(t.Commands, c)
	}
	return t
}

// decisionErrorString omits the underlying cause, which for schema failures
// is validator output that varies between releases.
func decisionErrorString(err error) string {
	var de *decision.Error
	if errors.As(err, &de) {
		return fmt.Sprintf("%s: %s", de.Code, de.Message)
	}
	return err.Error()
}

func checkExpect(t CycleTrace, exp CycleExpect) []string {
	var errs []string
	if exp.Idle != nil && *exp.Idle != t.Idle {
		errs = append(errs, fmt.Sprintf("expected idle=%t, got idle=%t", *exp.Idle, t.Idle))
	}
	if exp.Dispatched != nil {
		names := make([]string, len(t.Commands))
		for i, c := range t.Commands {
			names[i] = c.Name
		}
		if !slices.Equal(names, exp.Dispatched) {
			errs = append(errs, fmt.Sprintf("expected dispatched %v, got %v", exp.Dispatched, names))
		}
	}
	if exp.DecisionError != "" && !strings.HasPrefix(t.DecisionError, exp.DecisionError+":") {
		errs = append(errs, fmt.Sprintf("expected decision error %s, got %q", exp.DecisionError, t.DecisionError))
	}
	return errs
}

func bindHandler(h HandlerSpec) (action.Handler, error) {
	switch h.Name {
	case "speech":
		return action.Speech(scripted[action.SpeechInput](h.Fail)), nil
	case "tweet":
		return action.Tweet(scripted[action.TweetInput](h.Fail)), nil
	case "move":
		return action.Move(scripted[action.MoveInput](h.Fail)), nil
	case "face":
		return action.Face(scripted[action.FaceInput](h.Fail)), nil
	case "wallet":
		return action.Wallet(scripted[action.WalletInput](h.Fail)), nil
	}
	return nil, fmt.Errorf("unknown handler %q", h.Name)
}

// scripted echoes its input, or fails with msg when msg is set.
func scripted[T any](msg string) action.Implementation[T, T] {
	if msg == "" {
		return action.Passthrough[T]{}
	}
	return action.ImplementationFunc[T, T](func(context.Context, T) (T, error) {
		var zero T
		return zero, errors.New(msg)
	})
}
