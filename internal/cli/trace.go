package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fuser/internal/store"
)

// LatestCycle selects the most recent cycle in --cycle.
const LatestCycle = "latest"

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	CycleID    string
	ShowPrompt bool
}

// TraceEvent is one timing mark of the cycle.
type TraceEvent struct {
	Phase  string    `json:"phase"`
	At     time.Time `json:"at"`
	Offset string    `json:"offset"`
}

// TraceInput is one source's contribution to the prompt.
type TraceInput struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// TraceFault is a source that failed during polling.
type TraceFault struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// TraceCommand is one decided command and its dispatch outcome.
type TraceCommand struct {
	Name       string   `json:"name"`
	Args       []string `json:"args"`
	Status     string   `json:"status,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	CycleID           string         `json:"cycle_id"`
	Seq               int64          `json:"seq"`
	StartedAt         time.Time      `json:"started_at"`
	SkippedWait       bool           `json:"skipped_wait"`
	Idle              bool           `json:"idle"`
	Timeline          []TraceEvent   `json:"timeline"`
	Inputs            []TraceInput   `json:"inputs"`
	Faults            []TraceFault   `json:"faults"`
	Commands          []TraceCommand `json:"commands"`
	PromptHash        string         `json:"prompt_hash,omitempty"`
	Prompt            string         `json:"prompt,omitempty"`
	DecisionHash      string         `json:"decision_hash,omitempty"`
	DecisionError     string         `json:"decision_error,omitempty"`
	DecisionLatencyMS int64          `json:"decision_latency_ms"`
	RuntimeVersion    string         `json:"runtime_version,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show what happened in one cycle",
		Long: `Show one recorded fusion cycle from a trace database.

The output includes:
- Timeline: cycle start, fuse end, decision start and decision end
- Inputs: the text each source contributed, in prompt order
- Faults: sources that failed or overran their poll step
- Commands: what the model decided and how each dispatch went

Examples:
  fuser trace --db ./trace.db --cycle latest
  fuser trace --db ./trace.db --cycle 0192f5c0-7a1e-7cc3-9f4e-0d5b2c1e8a77 --prompt
  fuser trace --db ./trace.db --cycle latest --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.CycleID, "cycle", "", `cycle ID to show, or "latest" (required)`)
	_ = cmd.MarkFlagRequired("cycle")
	cmd.Flags().BoolVar(&opts.ShowPrompt, "prompt", false, "include the full prompt text")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openTrace(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	id := opts.CycleID
	if id == LatestCycle {
		recent, err := st.ListCycles(ctx, 1)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list cycles", err)
		}
		if len(recent) == 0 {
			return cycleNotFound(formatter, id)
		}
		id = recent[0].ID
	}
	formatter.VerboseLog("reading cycle %s", id)

	rec, err := st.ReadCycle(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return cycleNotFound(formatter, id)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cycle", err)
	}

	result := buildTraceResult(rec, opts.ShowPrompt)
	if opts.Format == "json" {
		return formatter.SuccessFor(result.CycleID, result)
	}
	writeTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// openTrace opens an existing trace database. It never creates one.
func openTrace(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func cycleNotFound(formatter *OutputFormatter, id string) error {
	if err := formatter.Error(CodeCycleNotFound, "cycle not found", map[string]string{"cycle": id}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("cycle not found: %s", id))
}

func buildTraceResult(rec store.CycleRecord, withPrompt bool) TraceResult {
	r := TraceResult{
		CycleID:           rec.ID,
		Seq:               rec.Seq,
		StartedAt:         rec.StartedAt,
		SkippedWait:       rec.SkippedWait,
		Idle:              rec.Idle,
		Timeline:          []TraceEvent{},
		Inputs:            []TraceInput{},
		Faults:            []TraceFault{},
		Commands:          []TraceCommand{},
		PromptHash:        rec.PromptHash,
		DecisionHash:      rec.DecisionHash,
		DecisionError:     rec.DecisionError,
		DecisionLatencyMS: rec.Timings.DecisionLatency().Milliseconds(),
		RuntimeVersion:    rec.RuntimeVersion,
	}
	if withPrompt {
		r.Prompt = rec.Prompt
	}

	marks := []struct {
		phase string
		at    time.Time
	}{
		{"started", rec.StartedAt},
		{"fuse_end", rec.Timings.FuseEnd},
		{"decision_start", rec.Timings.DecisionStart},
		{"decision_end", rec.Timings.DecisionEnd},
	}
	for _, m := range marks {
		if m.at.IsZero() {
			continue
		}
		r.Timeline = append(r.Timeline, TraceEvent{
			Phase:  m.phase,
			At:     m.at,
			Offset: m.at.Sub(rec.StartedAt).String(),
		})
	}

	for _, in := range rec.Inputs {
		r.Inputs = append(r.Inputs, TraceInput{Source: in.Source, Text: in.Text})
	}
	for _, f := range rec.Faults {
		r.Faults = append(r.Faults, TraceFault{Source: f.Source, Error: f.Error})
	}
	for _, c := range rec.Commands {
		r.Commands = append(r.Commands, TraceCommand{
			Name:       c.Name,
			Args:       c.Args,
			Status:     c.Status,
			Error:      c.Error,
			DurationMS: c.Duration.Milliseconds(),
		})
	}
	return r
}

func writeTraceText(w io.Writer, r TraceResult, verbose bool) {
	fmt.Fprintf(w, "Cycle %s (seq %d)\n", r.CycleID, r.Seq)
	fmt.Fprintf(w, "Started: %s", r.StartedAt.Format(time.RFC3339Nano))
	if r.SkippedWait {
		fmt.Fprint(w, " (skipped wait)")
	}
	fmt.Fprintln(w)
	if r.Idle {
		fmt.Fprintln(w, "Idle: no source had anything to report")
	}

	fmt.Fprintln(w, "\nTimeline:")
	for _, e := range r.Timeline {
		fmt.Fprintf(w, "  %-15s +%s\n", e.Phase, e.Offset)
	}

	if len(r.Inputs) > 0 {
		fmt.Fprintln(w, "\nInputs:")
		for _, in := range r.Inputs {
			fmt.Fprintf(w, "  [%s] %s\n", in.Source, indentTail(in.Text, "    "))
		}
	}
	if len(r.Faults) > 0 {
		fmt.Fprintln(w, "\nFaults:")
		for _, f := range r.Faults {
			fmt.Fprintf(w, "  [%s] %s\n", f.Source, f.Error)
		}
	}

	fmt.Fprintln(w, "\nDecision:")
	switch {
	case r.DecisionError != "":
		fmt.Fprintf(w, "  failed: %s\n", r.DecisionError)
	case r.Idle:
		fmt.Fprintln(w, "  not requested")
	default:
		fmt.Fprintf(w, "  latency %dms, %d commands\n", r.DecisionLatencyMS, len(r.Commands))
	}
	for _, c := range r.Commands {
		status := c.Status
		if status == "" {
			status = "not dispatched"
		}
		fmt.Fprintf(w, "  %s(%s) -> %s", c.Name, strings.Join(c.Args, ", "), status)
		if c.Error != "" {
			fmt.Fprintf(w, ": %s", c.Error)
		}
		fmt.Fprintln(w)
	}

	if verbose {
		fmt.Fprintf(w, "\nPrompt hash:   %s\n", r.PromptHash)
		fmt.Fprintf(w, "Decision hash: %s\n", r.DecisionHash)
	}
	if r.Prompt != "" {
		fmt.Fprintf(w, "\nPrompt:\n%s\n", r.Prompt)
	}
}

func indentTail(s, indent string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+indent)
}
