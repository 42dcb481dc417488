package ir

import (
	"strings"
	"time"
)

// Record is a timestamped value produced by an input source at conversion time.
// The timestamp is the acquisition time, not the time the record is formatted.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Value     string    `json:"value"`
}

// NewRecord creates a record stamped with ts.
func NewRecord(ts time.Time, value string) Record {
	return Record{Timestamp: ts, Value: value}
}

// IsZero reports whether r carries no value.
func (r Record) IsZero() bool {
	return r.Value == "" && r.Timestamp.IsZero()
}

// Argument is a single positional command argument.
type Argument struct {
	Value string `json:"value"`
}

// Command is a named instruction with an ordered argument list.
// It is the only artifact that crosses from decision to action.
type Command struct {
	Name      string     `json:"name"`
	Arguments []Argument `json:"arguments"`
}

// NewCommand builds a command from positional argument values.
func NewCommand(name string, values ...string) Command {
	args := make([]Argument, len(values))
	for i, v := range values {
		args[i] = Argument{Value: v}
	}
	return Command{Name: name, Arguments: args}
}

// Arg returns the i-th argument value, or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Arguments) {
		return ""
	}
	return c.Arguments[i].Value
}

// Values returns the argument values in order.
func (c Command) Values() []string {
	out := make([]string, len(c.Arguments))
	for i, a := range c.Arguments {
		out[i] = a.Value
	}
	return out
}

// String renders the command as name(arg, arg) for logs.
func (c Command) String() string {
	return c.Name + "(" + strings.Join(c.Values(), ", ") + ")"
}

// Decision is a parsed, schema-validated decision engine result.
// A Decision with no commands is a valid empty result, distinct from a failure.
type Decision struct {
	Commands []Command `json:"commands"`
}

// Len returns the number of commands in the decision.
func (d Decision) Len() int {
	return len(d.Commands)
}

// CycleTimings holds the timing markers of the current fusion cycle.
// The orchestrator guarantees FuseEnd <= DecisionStart <= DecisionEnd.
type CycleTimings struct {
	FuseEnd       time.Time `json:"fuse_end"`
	DecisionStart time.Time `json:"decision_start"`
	DecisionEnd   time.Time `json:"decision_end"`
}

// DecisionLatency returns DecisionEnd - DecisionStart, or 0 when incomplete.
func (t CycleTimings) DecisionLatency() time.Duration {
	if t.DecisionStart.IsZero() || t.DecisionEnd.IsZero() {
		return 0
	}
	return t.DecisionEnd.Sub(t.DecisionStart)
}

// Entry is the latest input observed from one named source.
type Entry struct {
	Source    string    `json:"source"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
