package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fuser/internal/input"
)

// Default buffer behaviour for sources that leave it unset.
const (
	DefaultPolicy    = "single_slot"
	DefaultRetention = "clear_on_format"
)

// Scenario defines a scripted fusion run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// System is the standing context placed at the top of every prompt.
	System string `yaml:"system,omitempty"`

	// Sources are formatted into the prompt in the order listed.
	Sources []SourceSpec `yaml:"sources"`

	// Handlers are the commands offered to the model.
	Handlers []HandlerSpec `yaml:"handlers"`

	// Cycles run one fusion cycle each, in order.
	Cycles []CycleStep `yaml:"cycles"`

	// Assertions validate the whole run after the last cycle.
	// Supported types: command_dispatched, command_order, command_count,
	// idle_cycles, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SourceSpec declares one scripted input source.
type SourceSpec struct {
	Name string `yaml:"name"`

	// Descriptor labels the prompt block; defaults to Name.
	Descriptor string `yaml:"descriptor,omitempty"`

	// Policy is single_slot, append_distinct or token_accumulate.
	Policy string `yaml:"policy,omitempty"`

	// Retention is clear_on_format or persist.
	Retention string `yaml:"retention,omitempty"`
}

// HandlerSpec selects a built-in command.
type HandlerSpec struct {
	// Name is speech, tweet, move, face or wallet.
	Name string `yaml:"name"`

	// Fail, when set, makes every invocation fail with this message.
	Fail string `yaml:"fail,omitempty"`
}

// CycleStep scripts one fusion cycle.
type CycleStep struct {
	// Records are absorbed into each named source before the cycle runs.
	Records map[string][]string `yaml:"records,omitempty"`

	// Faults make the named sources' poll step fail with the given message.
	Faults map[string]string `yaml:"faults,omitempty"`

	// Reply is the raw model response for this cycle's decision.
	Reply string `yaml:"reply,omitempty"`

	// ReplyError makes the model request itself fail.
	ReplyError string `yaml:"reply_error,omitempty"`

	// Expect checks this cycle's outcome. Nil means no check.
	Expect *CycleExpect `yaml:"expect,omitempty"`
}

// CycleExpect specifies the expected outcome of one cycle.
type CycleExpect struct {
	// Idle, when set, must match whether the cycle had nothing to fuse.
	Idle *bool `yaml:"idle,omitempty"`

	// Dispatched lists the command names in dispatch order.
	Dispatched []string `yaml:"dispatched,omitempty"`

	// DecisionError is the expected decision error code, such as SCHEMA.
	DecisionError string `yaml:"decision_error,omitempty"`
}

// Assertion validates the dispatched commands or the recorded trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Command names the command (command_dispatched, command_count).
	Command string `yaml:"command,omitempty"`

	// Args must equal the dispatched arguments when set (command_dispatched).
	Args []string `yaml:"args,omitempty"`

	// Status must equal the dispatch status when set (command_dispatched).
	Status string `yaml:"status,omitempty"`

	// Commands is the expected dispatch order (command_order).
	Commands []string `yaml:"commands,omitempty"`

	// Count is the expected number of matches (command_count, idle_cycles).
	Count int `yaml:"count,omitempty"`

	// Table is the trace table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where filters rows; all columns must match exactly (final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values, subset match (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertCommandDispatched = "command_dispatched"
	AssertCommandOrder      = "command_order"
	AssertCommandCount      = "command_count"
	AssertIdleCycles        = "idle_cycles"
	AssertFinalState        = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Sources) == 0 {
		return fmt.Errorf("sources list is required and must be non-empty")
	}
	if len(s.Handlers) == 0 {
		return fmt.Errorf("handlers list is required and must be non-empty")
	}
	if len(s.Cycles) == 0 {
		return fmt.Errorf("cycles list is required and must be non-empty")
	}

	sources := make(map[string]bool, len(s.Sources))
	for i, src := range s.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if sources[src.Name] {
			return fmt.Errorf("sources[%d]: duplicate source %q", i, src.Name)
		}
		sources[src.Name] = true
		if _, err := input.ParsePolicy(orDefault(src.Policy, DefaultPolicy)); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, err := input.ParseRetention(orDefault(src.Retention, DefaultRetention)); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}

	handlers := make(map[string]bool, len(s.Handlers))
	for i, h := range s.Handlers {
		if !knownHandlers[h.Name] {
			return fmt.Errorf("handlers[%d]: unknown handler %q", i, h.Name)
		}
		if handlers[h.Name] {
			return fmt.Errorf("handlers[%d]: duplicate handler %q", i, h.Name)
		}
		handlers[h.Name] = true
	}

	for i, step := range s.Cycles {
		for name := range step.Records {
			if !sources[name] {
				return fmt.Errorf("cycles[%d].records: unknown source %q", i, name)
			}
		}
		for name := range step.Faults {
			if !sources[name] {
				return fmt.Errorf("cycles[%d].faults: unknown source %q", i, name)
			}
		}
		if step.Reply != "" && step.ReplyError != "" {
			return fmt.Errorf("cycles[%d]: reply and reply_error are mutually exclusive", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCommandDispatched:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for command_dispatched", index)
		}
	case AssertCommandOrder:
		if len(a.Commands) == 0 {
			return fmt.Errorf("assertions[%d]: commands list is required for command_order", index)
		}
	case AssertCommandCount:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for command_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertIdleCycles:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
