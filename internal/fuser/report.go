package fuser

import (
	"context"
	"time"

	"github.com/roach88/fuser/internal/action"
	"github.com/roach88/fuser/internal/ir"
)

// Phase is the orchestrator state.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePolling
	PhaseFormatting
	PhaseDeciding
	PhaseDispatching
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePolling:
		return "polling"
	case PhaseFormatting:
		return "formatting"
	case PhaseDeciding:
		return "deciding"
	case PhaseDispatching:
		return "dispatching"
	}
	return "unknown"
}

// FusedInput is one source's contribution to a prompt.
type FusedInput struct {
	Source string
	Text   string
}

// SourceFault records a source that contributed nothing because it failed.
type SourceFault struct {
	Source string
	Err    error
}

// CycleReport describes one completed cycle.
type CycleReport struct {
	ID      string
	Seq     int64
	Started time.Time

	// SkippedWait is true when the idle wait was cut short by a skip request.
	SkippedWait bool

	Faults []SourceFault
	Inputs []FusedInput

	// Idle is true when no source had anything to show and no decision was made.
	Idle bool

	Body         string
	Prompt       string
	PromptHash   string
	Timings      ir.CycleTimings
	Decision     ir.Decision
	DecisionErr  error
	DecisionHash string
	Dispatch     action.Report
}

// Recorder persists cycle reports.
type Recorder interface {
	RecordCycle(ctx context.Context, r CycleReport) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, r CycleReport) error

// RecordCycle implements Recorder.
func (f RecorderFunc) RecordCycle(ctx context.Context, r CycleReport) error {
	return f(ctx, r)
}
