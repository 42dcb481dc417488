package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuser/internal/cadence"
	"github.com/roach88/fuser/internal/ir"
	"github.com/roach88/fuser/internal/registry"
)

// scriptedPoller yields its values one per poll, then reports nothing ready.
type scriptedPoller struct {
	values  []string
	err     error
	backlog int
}

func (p *scriptedPoller) Poll(context.Context) (string, bool, error) {
	if p.err != nil {
		return "", false, p.err
	}
	if len(p.values) == 0 {
		return "", false, nil
	}
	v := p.values[0]
	p.values = p.values[1:]
	return v, true, nil
}

func (p *scriptedPoller) Backlog() int {
	return p.backlog
}

func stampAt(ts time.Time) Converter[string] {
	return func(raw string) (ir.Record, bool) {
		if raw == "" {
			return ir.Record{}, false
		}
		return ir.NewRecord(ts, raw), true
	}
}

func newTestInput(t *testing.T, spec Spec, p Poller[string], reg *registry.Registry, opts ...Option) *Input[string] {
	t.Helper()
	in, err := New(spec, p, stampAt(time.Unix(100, 0)), reg, opts...)
	require.NoError(t, err)
	return in
}

func TestNew_Validation(t *testing.T) {
	p := &scriptedPoller{}
	conv := stampAt(time.Unix(1, 0))

	_, err := New(Spec{Policy: SingleSlot, Retention: Persist}, p, conv, nil)
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = New(Spec{Name: "a", Policy: SingleSlot}, p, conv, nil)
	assert.ErrorIs(t, err, ErrRetentionUnset)

	_, err = New(Spec{Name: "a", Retention: Persist}, p, conv, nil)
	assert.ErrorIs(t, err, ErrPolicyUnset)

	_, err = New[string](Spec{Name: "a", Policy: SingleSlot, Retention: Persist}, nil, conv, nil)
	assert.Error(t, err)
}

func TestNew_DescriptorDefaultsToName(t *testing.T) {
	in := newTestInput(t, Spec{Name: "wallet", Policy: SingleSlot, Retention: Persist}, &scriptedPoller{}, nil)
	assert.Equal(t, "wallet", in.Spec().Descriptor)
}

func TestStep_AbsorbsAndFormats(t *testing.T) {
	reg := registry.New()
	p := &scriptedPoller{values: []string{"hello", "world"}}
	in := newTestInput(t, Spec{Name: "asr", Descriptor: "Voice", Policy: TokenAccumulate, Retention: ClearOnFormat}, p, reg)

	require.NoError(t, in.Step(context.Background()))
	require.NoError(t, in.Step(context.Background()))

	text, ok := in.FormatLatest()
	require.True(t, ok)
	assert.Equal(t, "\nVoice INPUT\n// START\nhello world\n// END\n", text)

	e, ok := reg.Lookup("asr")
	require.True(t, ok)
	assert.Equal(t, "hello world", e.Value)
	assert.True(t, e.Timestamp.Equal(time.Unix(100, 0)), "registry entry carries the acquisition time")
}

func TestFormatLatest_ClearOnFormat(t *testing.T) {
	in := newTestInput(t, Spec{Name: "vision", Policy: SingleSlot, Retention: ClearOnFormat}, &scriptedPoller{values: []string{"a person"}}, nil)
	require.NoError(t, in.Step(context.Background()))

	_, ok := in.FormatLatest()
	require.True(t, ok)

	_, ok = in.FormatLatest()
	assert.False(t, ok, "a cleared record is surfaced exactly once")
	assert.Empty(t, in.Buffered())
}

func TestFormatLatest_Persist(t *testing.T) {
	in := newTestInput(t, Spec{Name: "rules", Policy: AppendDistinct, Retention: Persist}, &scriptedPoller{values: []string{"be kind"}}, nil)
	require.NoError(t, in.Step(context.Background()))

	first, ok := in.FormatLatest()
	require.True(t, ok)
	second, ok := in.FormatLatest()
	require.True(t, ok)
	assert.Equal(t, first, second, "formatting is deterministic and persistent state is re-surfaced")
}

func TestFormatLatest_Empty(t *testing.T) {
	reg := registry.New()
	in := newTestInput(t, Spec{Name: "asr", Policy: TokenAccumulate, Retention: ClearOnFormat}, &scriptedPoller{}, reg)

	_, ok := in.FormatLatest()
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len(), "nothing is registered when there is nothing to show")
}

func TestStep_SingleSlotIdempotent(t *testing.T) {
	in := newTestInput(t, Spec{Name: "wallet", Policy: SingleSlot, Retention: Persist}, &scriptedPoller{values: []string{"1.000 ETH", "1.000 ETH"}}, nil)

	require.NoError(t, in.Step(context.Background()))
	require.NoError(t, in.Step(context.Background()))
	assert.Len(t, in.Buffered(), 1)
}

func TestStep_ConvertRejects(t *testing.T) {
	in := newTestInput(t, Spec{Name: "asr", Policy: TokenAccumulate, Retention: ClearOnFormat}, &scriptedPoller{values: []string{""}}, nil)
	require.NoError(t, in.Step(context.Background()))
	assert.Empty(t, in.Buffered())
}

func TestStep_PollError(t *testing.T) {
	boom := errors.New("boom")
	in := newTestInput(t, Spec{Name: "gov", Policy: AppendDistinct, Retention: Persist}, &scriptedPoller{err: boom}, nil)

	err := in.Step(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "poll gov")
}

func TestStep_BacklogRequestsSkip(t *testing.T) {
	c := cadence.New(time.Hour)
	p := &scriptedPoller{values: []string{"one"}, backlog: 3}
	in := newTestInput(t, Spec{Name: "asr", Policy: TokenAccumulate, Retention: ClearOnFormat}, p, nil, WithSkipHint(c))

	require.NoError(t, in.Step(context.Background()))
	assert.True(t, c.ConsumeSkip())
}

func TestStep_PendingClearableBufferRequestsSkip(t *testing.T) {
	c := cadence.New(time.Hour)
	p := &scriptedPoller{values: []string{"one"}}
	in := newTestInput(t, Spec{Name: "asr", Policy: TokenAccumulate, Retention: ClearOnFormat}, p, nil, WithSkipHint(c))

	require.NoError(t, in.Step(context.Background()))
	assert.False(t, c.ConsumeSkip(), "no backlog, no hint")

	require.NoError(t, in.Step(context.Background()))
	assert.True(t, c.ConsumeSkip(), "unformatted data is waiting")
}

func TestStep_PersistNeverHintsWhenIdle(t *testing.T) {
	c := cadence.New(time.Hour)
	in := newTestInput(t, Spec{Name: "rules", Policy: AppendDistinct, Retention: Persist}, &scriptedPoller{values: []string{"r"}}, nil, WithSkipHint(c))

	require.NoError(t, in.Step(context.Background()))
	require.NoError(t, in.Step(context.Background()))
	assert.False(t, c.ConsumeSkip())
}

func TestParseRetention(t *testing.T) {
	for _, r := range []Retention{ClearOnFormat, Persist} {
		got, err := ParseRetention(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	_, err := ParseRetention("forever")
	assert.Error(t, err)
}

func TestPollerFunc(t *testing.T) {
	var f Poller[int] = PollerFunc[int](func(context.Context) (int, bool, error) { return 7, true, nil })
	v, ok, err := f.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}
