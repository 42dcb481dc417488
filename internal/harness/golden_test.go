package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"greeting", "degraded"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestGolden_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/greeting.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, string(Transcript(first)), string(Transcript(second)))
}

func TestTranscript_Format(t *testing.T) {
	r := NewResult("tiny")
	r.Sources = []string{"asr"}
	r.Cycles = []CycleTrace{
		{
			ID:     "cycle-1",
			Seq:    1,
			Inputs: []CycleInput{{Source: "asr", Text: "\nVoice INPUT\n// START\nhi\n// END\n"}},
			Commands: []CycleCommand{
				{Name: "speech", Args: []string{"hello"}, Status: "ok"},
				{Name: "move", Args: []string{"sit"}, Status: "failed", Error: "stuck"},
			},
		},
		{ID: "cycle-2", Seq: 2, Idle: true},
		{ID: "cycle-3", Seq: 3, Inputs: []CycleInput{{Source: "asr", Text: "x"}}, DecisionError: "TIMEOUT: decision timed out"},
	}

	want := `scenario: tiny
sources: asr

cycle 1 cycle-1
  input asr:
    Voice INPUT
    // START
    hi
    // END
  decision: 2 commands
  dispatch speech(hello): ok
  dispatch move(sit): failed: stuck

cycle 2 cycle-2
  idle

cycle 3 cycle-3
  input asr:
    x
  decision failed: TIMEOUT: decision timed out
`
	assert.Equal(t, want, string(Transcript(r)))
}
