package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sayHi = `{"commands":[{"name":"speech","arguments":[{"value":"hi"}]}]}`

func minimalScenario() *Scenario {
	return &Scenario{
		Name:        "minimal",
		Description: "One spoken line answered once",
		Sources:     []SourceSpec{{Name: "asr", Descriptor: "Voice"}},
		Handlers:    []HandlerSpec{{Name: "speech"}},
		Cycles: []CycleStep{
			{Records: map[string][]string{"asr": {"hello"}}, Reply: sayHi},
		},
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(minimalScenario())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"asr"}, result.Sources)

	require.Len(t, result.Cycles, 1)
	c := result.Cycles[0]
	assert.Equal(t, "cycle-1", c.ID)
	assert.Equal(t, int64(1), c.Seq)
	assert.False(t, c.Idle)
	require.Len(t, c.Inputs, 1)
	assert.Equal(t, "\nVoice INPUT\n// START\nhello\n// END\n", c.Inputs[0].Text)
	assert.Equal(t, []CycleCommand{{Name: "speech", Args: []string{"hi"}, Status: "ok"}}, c.Commands)
}

func TestRun_ClearOnFormatConsumesRecords(t *testing.T) {
	s := minimalScenario()
	s.Cycles = append(s.Cycles, CycleStep{Reply: sayHi})

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Cycles, 2)
	assert.False(t, result.Cycles[0].Idle)
	assert.True(t, result.Cycles[1].Idle)
	assert.Empty(t, result.Cycles[1].Commands)
}

func TestRun_PersistRetainsRecords(t *testing.T) {
	s := minimalScenario()
	s.Sources[0].Retention = "persist"
	s.Cycles = append(s.Cycles, CycleStep{Reply: sayHi})

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Cycles, 2)
	assert.False(t, result.Cycles[1].Idle)
	assert.Equal(t, result.Cycles[0].Inputs, result.Cycles[1].Inputs)
}

func TestRun_TokenAccumulateJoinsRecords(t *testing.T) {
	s := minimalScenario()
	s.Sources[0].Policy = "token_accumulate"
	s.Cycles[0].Records["asr"] = []string{"good", "morning", "racoon"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.Contains(t, result.Cycles[0].Inputs[0].Text, "\ngood morning racoon\n")
}

func TestRun_SingleSlotKeepsLatest(t *testing.T) {
	s := minimalScenario()
	s.Cycles[0].Records["asr"] = []string{"first", "second"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.Contains(t, result.Cycles[0].Inputs[0].Text, "\nsecond\n")
	assert.NotContains(t, result.Cycles[0].Inputs[0].Text, "first")
}

func TestRun_FaultedSourceStillFormatsBuffer(t *testing.T) {
	s := minimalScenario()
	s.Cycles[0].Faults = map[string]string{"asr": "mic unplugged"}

	result, err := Run(s)
	require.NoError(t, err)
	c := result.Cycles[0]
	assert.Equal(t, []CycleFault{{Source: "asr", Error: "poll asr: mic unplugged"}}, c.Faults)
	assert.False(t, c.Idle)
	assert.Len(t, c.Commands, 1)
}

func TestRun_FailingHandler(t *testing.T) {
	s := minimalScenario()
	s.Handlers = []HandlerSpec{{Name: "speech", Fail: "speaker blown"}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, []CycleCommand{{Name: "speech", Args: []string{"hi"}, Status: "failed", Error: "speaker blown"}},
		result.Cycles[0].Commands)
}

func TestRun_ReplyError(t *testing.T) {
	s := minimalScenario()
	s.Cycles[0].Reply = ""
	s.Cycles[0].ReplyError = "rate limited"
	s.Cycles[0].Expect = &CycleExpect{DecisionError: "TRANSPORT"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "TRANSPORT: model request failed", result.Cycles[0].DecisionError)
	assert.Empty(t, result.Cycles[0].Commands)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	idle := true
	s := minimalScenario()
	s.Cycles[0].Expect = &CycleExpect{Idle: &idle, Dispatched: []string{"move"}, DecisionError: "SCHEMA"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "cycle 1: expected idle=true")
	assert.Contains(t, result.Errors[1], "expected dispatched [move]")
	assert.Contains(t, result.Errors[2], "expected decision error SCHEMA")
}

func TestRun_AssertionFailureFailsResult(t *testing.T) {
	s := minimalScenario()
	s.Assertions = []Assertion{{Type: AssertCommandCount, Command: "speech", Count: 2}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "2 dispatches of speech")
}

func TestRun_IsolatedStores(t *testing.T) {
	s := minimalScenario()
	s.Assertions = []Assertion{{
		Type:   AssertFinalState,
		Table:  "cycles",
		Where:  map[string]any{"seq": 1},
		Expect: map[string]any{"id": "cycle-1"},
	}}

	for range 2 {
		result, err := Run(s)
		require.NoError(t, err)
		assert.True(t, result.Pass, result.Errors)
	}
}

func TestRun_UnknownPolicy(t *testing.T) {
	s := minimalScenario()
	s.Sources[0].Policy = "newest_wins"

	_, err := Run(s)
	assert.Error(t, err)
}

func TestResult_Dispatched(t *testing.T) {
	r := NewResult("x")
	r.Cycles = []CycleTrace{
		{Commands: []CycleCommand{{Name: "speech"}}},
		{Idle: true},
		{Commands: []CycleCommand{{Name: "move"}, {Name: "face"}}},
	}

	var names []string
	for _, c := range r.Dispatched() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"speech", "move", "face"}, names)
}
