package fuser

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fuser/internal/action"
	"github.com/roach88/fuser/internal/cadence"
	"github.com/roach88/fuser/internal/decision"
	"github.com/roach88/fuser/internal/input"
	"github.com/roach88/fuser/internal/registry"
)

// fakeSource is a Source with a fixed formatted value.
type fakeSource struct {
	name    string
	text    string
	err     error
	panics  bool
	release chan struct{} // when set, Step blocks until closed, ignoring ctx
	steps   atomic.Int32
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Step(context.Context) error {
	s.steps.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.panics {
		panic("sensor unplugged")
	}
	return s.err
}

func (s *fakeSource) FormatLatest() (string, bool) {
	if s.text == "" {
		return "", false
	}
	return input.Frame(s.name, s.text), true
}

// blockingSource returns a source whose Step blocks until the test ends.
func blockingSource(t *testing.T, name string) *fakeSource {
	t.Helper()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	return &fakeSource{name: name, release: release}
}

type memRecorder struct {
	mu      sync.Mutex
	reports []CycleReport
	err     error
}

func (r *memRecorder) RecordCycle(_ context.Context, rep CycleReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return r.err
}

func (r *memRecorder) all() []CycleReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CycleReport(nil), r.reports...)
}

type spoken struct {
	mu  sync.Mutex
	got []string
}

func (s *spoken) Execute(_ context.Context, in action.SpeechInput) (action.SpeechInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, in.Sentence)
	return in, nil
}

func (s *spoken) sentences() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

// rig wires a Fuser to the real adapter and dispatcher with a scripted model.
type rig struct {
	fuser    *Fuser
	registry *registry.Registry
	cadence  *cadence.Controller
	speech   *spoken
	recorder *memRecorder
	asks     atomic.Int32
}

func newRig(t *testing.T, sources []input.Source, reply func(prompt string) (string, error), opts ...Option) *rig {
	t.Helper()

	r := &rig{
		registry: registry.New(),
		cadence:  cadence.New(cadence.DefaultInterval),
		speech:   &spoken{},
		recorder: &memRecorder{},
	}

	handlers := action.NewRegistry()
	require.NoError(t, handlers.Register(action.Speech(r.speech)))
	require.NoError(t, handlers.Register(action.Move(action.ImplementationFunc[action.MoveInput, action.MoveInput](
		func(context.Context, action.MoveInput) (action.MoveInput, error) {
			return action.MoveInput{}, errors.New("servo offline")
		}))))

	schema, err := decision.NewSchema(handlers.Catalog())
	require.NoError(t, err)

	client := decision.ClientFunc(func(_ context.Context, prompt string, _ decision.Catalog) (string, error) {
		r.asks.Add(1)
		return reply(prompt)
	})
	adapter := decision.NewAdapter(client, schema, r.registry)

	opts = append([]Option{WithRecorder(r.recorder), WithIDGenerator(&seqIDs{})}, opts...)
	f, err := New(sources, adapter, action.NewDispatcher(handlers), r.registry, r.cadence, opts...)
	require.NoError(t, err)
	r.fuser = f
	return r
}

// seqIDs hands out cycle-1, cycle-2, ...
type seqIDs struct {
	n atomic.Int32
}

func (g *seqIDs) Generate() string {
	return "cycle-" + strconv.Itoa(int(g.n.Add(1)))
}

func reply(raw string) func(string) (string, error) {
	return func(string) (string, error) { return raw, nil }
}
