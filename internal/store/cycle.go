package store

import (
	"time"

	"github.com/roach88/fuser/internal/fuser"
	"github.com/roach88/fuser/internal/ir"
)

// CycleRecord is the persisted trace of one fusion cycle.
type CycleRecord struct {
	ID          string
	Seq         int64
	StartedAt   time.Time
	SkippedWait bool
	Idle        bool

	Prompt        string
	PromptHash    string
	Timings       ir.CycleTimings
	DecisionHash  string
	DecisionError string

	RuntimeVersion string
	TraceVersion   string

	Inputs   []InputRecord
	Faults   []FaultRecord
	Commands []CommandRecord
}

// InputRecord is one source's formatted contribution.
type InputRecord struct {
	Source string
	Text   string
}

// FaultRecord is a source that failed during polling.
type FaultRecord struct {
	Source string
	Error  string
}

// CommandRecord is one decided command and how its dispatch went.
type CommandRecord struct {
	CycleID  string
	Name     string
	Args     []string
	Status   string
	Error    string
	Duration time.Duration
}

// Command returns the record as an ir.Command.
func (c CommandRecord) Command() ir.Command {
	return ir.NewCommand(c.Name, c.Args...)
}

// CycleSummary is a cycle without its children, for listings.
type CycleSummary struct {
	ID              string
	Seq             int64
	StartedAt       time.Time
	Idle            bool
	DecisionError   string
	DecisionLatency time.Duration
	Inputs          int
	Commands        int
	Faults          int
}

// FromReport converts an orchestrator report into its persisted form.
// Commands carry the matching dispatch outcome; a failed decision has none.
func FromReport(r fuser.CycleReport) CycleRecord {
	rec := CycleRecord{
		ID:             r.ID,
		Seq:            r.Seq,
		StartedAt:      r.Started,
		SkippedWait:    r.SkippedWait,
		Idle:           r.Idle,
		Prompt:         r.Prompt,
		PromptHash:     r.PromptHash,
		Timings:        r.Timings,
		DecisionHash:   r.DecisionHash,
		DecisionError:  errString(r.DecisionErr),
		RuntimeVersion: ir.RuntimeVersion,
		TraceVersion:   ir.TraceVersion,
	}
	for _, in := range r.Inputs {
		rec.Inputs = append(rec.Inputs, InputRecord{Source: in.Source, Text: in.Text})
	}
	for _, f := range r.Faults {
		rec.Faults = append(rec.Faults, FaultRecord{Source: f.Source, Error: errString(f.Err)})
	}
	for i, cmd := range r.Decision.Commands {
		c := CommandRecord{CycleID: r.ID, Name: cmd.Name, Args: cmd.Values()}
		if i < len(r.Dispatch.Outcomes) {
			o := r.Dispatch.Outcomes[i]
			c.Status = string(o.Status)
			c.Error = errString(o.Err)
			c.Duration = o.Duration
		}
		rec.Commands = append(rec.Commands, c)
	}
	return rec
}
