package action

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuser/internal/ir"
)

// recorder captures executed inputs.
type recorder[T any] struct {
	mu  sync.Mutex
	got []T
}

func (r *recorder[T]) Execute(_ context.Context, in T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, in)
	return in, nil
}

func (r *recorder[T]) inputs() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.got...)
}

type failing[T any] struct{ err error }

func (f failing[T]) Execute(context.Context, T) (T, error) {
	var zero T
	return zero, f.err
}

type panicking[T any] struct{}

func (panicking[T]) Execute(context.Context, T) (T, error) {
	panic("servo jammed")
}

type batchSim struct {
	mu      sync.Mutex
	batches [][]ir.Command
	err     error
}

func (s *batchSim) Name() string { return "batch" }

func (s *batchSim) Sim(_ context.Context, cmds []ir.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, cmds)
	return s.err
}

func TestDispatch_FailureIsolation(t *testing.T) {
	for _, mode := range []Mode{Concurrent, Sequential} {
		t.Run(map[Mode]string{Concurrent: "concurrent", Sequential: "sequential"}[mode], func(t *testing.T) {
			speech := &recorder[SpeechInput]{}
			reg := NewRegistry()
			require.NoError(t, reg.Register(Speech(speech)))
			require.NoError(t, reg.Register(Move(failing[MoveInput]{err: errors.New("motor offline")})))

			d := NewDispatcher(reg, WithMode(mode))
			report := d.Dispatch(context.Background(), []ir.Command{
				ir.NewCommand("move", "forward"),
				ir.NewCommand("speech", "hi"),
			})

			assert.Equal(t, []SpeechInput{{Sentence: "hi"}}, speech.inputs())
			require.Len(t, report.Outcomes, 2)
			assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
			assert.EqualError(t, report.Outcomes[0].Err, "motor offline")
			assert.Equal(t, StatusOK, report.Outcomes[1].Status)
			assert.Equal(t, SpeechInput{Sentence: "hi"}, report.Outcomes[1].Output)
		})
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	speech := &recorder[SpeechInput]{}
	reg := NewRegistry()
	require.NoError(t, reg.Register(Speech(speech)))

	report := NewDispatcher(reg).Dispatch(context.Background(), []ir.Command{
		ir.NewCommand("dance", "salsa"),
		ir.NewCommand("speech", "still here"),
	})

	assert.Equal(t, StatusUnknown, report.Outcomes[0].Status)
	assert.Nil(t, report.Outcomes[0].Output)
	assert.Equal(t, 1, report.Count(StatusOK))
	assert.Equal(t, []SpeechInput{{Sentence: "still here"}}, speech.inputs())
}

func TestDispatch_RecoversPanic(t *testing.T) {
	speech := &recorder[SpeechInput]{}
	reg := NewRegistry()
	require.NoError(t, reg.Register(Move(panicking[MoveInput]{})))
	require.NoError(t, reg.Register(Speech(speech)))

	var report Report
	require.NotPanics(t, func() {
		report = NewDispatcher(reg).Dispatch(context.Background(), []ir.Command{
			ir.NewCommand("move", "jump"),
			ir.NewCommand("speech", "ouch"),
		})
	})

	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Err.Error(), "servo jammed")
	assert.Len(t, speech.inputs(), 1)
}

func TestDispatch_SequentialPreservesOrder(t *testing.T) {
	speech := &recorder[SpeechInput]{}
	reg := NewRegistry()
	require.NoError(t, reg.Register(Speech(speech)))

	cmds := []ir.Command{
		ir.NewCommand("speech", "one"),
		ir.NewCommand("speech", "two"),
		ir.NewCommand("speech", "three"),
	}
	report := NewDispatcher(reg, WithMode(Sequential)).Dispatch(context.Background(), cmds)

	assert.Equal(t, []SpeechInput{{"one"}, {"two"}, {"three"}}, speech.inputs())
	for i, o := range report.Outcomes {
		assert.Equal(t, cmds[i].String(), o.Command.String())
	}
}

func TestDispatch_ConcurrentReportOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Speech(ImplementationFunc[SpeechInput, SpeechInput](func(_ context.Context, in SpeechInput) (SpeechInput, error) {
		if in.Sentence == "slow" {
			time.Sleep(20 * time.Millisecond)
		}
		return in, nil
	}))))

	cmds := []ir.Command{ir.NewCommand("speech", "slow"), ir.NewCommand("speech", "fast")}
	report := NewDispatcher(reg, WithConcurrency(2)).Dispatch(context.Background(), cmds)

	assert.Equal(t, SpeechInput{Sentence: "slow"}, report.Outcomes[0].Output)
	assert.Equal(t, SpeechInput{Sentence: "fast"}, report.Outcomes[1].Output)
}

func TestDispatch_HandlerTimeout(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Speech(ImplementationFunc[SpeechInput, SpeechInput](func(ctx context.Context, in SpeechInput) (SpeechInput, error) {
		<-ctx.Done()
		return SpeechInput{}, ctx.Err()
	}))))

	report := NewDispatcher(reg, WithHandlerTimeout(10*time.Millisecond)).Dispatch(context.Background(), []ir.Command{ir.NewCommand("speech", "...")})
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.ErrorIs(t, report.Outcomes[0].Err, context.DeadlineExceeded)
}

func TestDispatch_SimulatorsReceiveBatch(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Speech(Passthrough[SpeechInput]{})))
	sim := &batchSim{err: errors.New("render failed")}

	cmds := []ir.Command{ir.NewCommand("speech", "hi"), ir.NewCommand("dance", "x")}
	NewDispatcher(reg, WithSimulators(sim)).Dispatch(context.Background(), cmds)

	require.Len(t, sim.batches, 1)
	assert.Equal(t, cmds, sim.batches[0])
}

func TestDispatch_Empty(t *testing.T) {
	report := NewDispatcher(NewRegistry()).Dispatch(context.Background(), nil)
	assert.Empty(t, report.Outcomes)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("sequential")
	require.NoError(t, err)
	assert.Equal(t, Sequential, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Concurrent, m)

	_, err = ParseMode("parallel")
	assert.Error(t, err)
}

func TestMode_StringRoundTrip(t *testing.T) {
	for _, m := range []Mode{Concurrent, Sequential} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}
