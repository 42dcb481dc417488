package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Transcript renders a result as plain text for golden comparison:
// each cycle's framed inputs, faults, decision and dispatch outcomes.
func Transcript(result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", result.Scenario)
	fmt.Fprintf(&b, "sources: %s\n", strings.Join(result.Sources, ", "))

	for _, c := range result.Cycles {
		fmt.Fprintf(&b, "\ncycle %d %s\n", c.Seq, c.ID)
		for _, in := range c.Inputs {
			fmt.Fprintf(&b, "  input %s:\n", in.Source)
			for _, line := range strings.Split(strings.Trim(in.Text, "\n"), "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
		for _, f := range c.Faults {
			fmt.Fprintf(&b, "  fault %s: %s\n", f.Source, f.Error)
		}

		switch {
		case c.Idle:
			b.WriteString("  idle\n")
		case c.DecisionError != "":
			fmt.Fprintf(&b, "  decision failed: %s\n", c.DecisionError)
		default:
			fmt.Fprintf(&b, "  decision: %d commands\n", len(c.Commands))
		}
		for _, cmd := range c.Commands {
			fmt.Fprintf(&b, "  dispatch %s(%s): %s", cmd.Name, strings.Join(cmd.Args, ", "), cmd.Status)
			if cmd.Error != "" {
				fmt.Fprintf(&b, ": %s", cmd.Error)
			}
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's transcript against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Transcript(result))
}
