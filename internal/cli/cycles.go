package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// CyclesOptions holds flags for the cycles command.
type CyclesOptions struct {
	*RootOptions
	Database string
	Limit    int
	Command  string
}

// CycleRow is one line of the cycle listing.
type CycleRow struct {
	ID                string    `json:"id"`
	Seq               int64     `json:"seq"`
	StartedAt         time.Time `json:"started_at"`
	Idle              bool      `json:"idle"`
	Inputs            int       `json:"inputs"`
	Faults            int       `json:"faults"`
	Commands          int       `json:"commands"`
	DecisionLatencyMS int64     `json:"decision_latency_ms"`
	DecisionError     string    `json:"decision_error,omitempty"`
}

// CommandRow is one past invocation of a command.
type CommandRow struct {
	CycleID    string   `json:"cycle_id"`
	Args       []string `json:"args"`
	Status     string   `json:"status,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// NewCyclesCommand creates the cycles command.
func NewCyclesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CyclesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "List recorded cycles",
		Long: `List the most recent fusion cycles in a trace database, newest first.

With --command the listing shows every recorded invocation of that command
instead, which is useful for checking how a webhook has been behaving.

Examples:
  fuser cycles --db ./trace.db
  fuser cycles --db ./trace.db --limit 100 --format json
  fuser cycles --db ./trace.db --command speech`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycles(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum rows to show (0 for all)")
	cmd.Flags().StringVar(&opts.Command, "command", "", "show the history of one command")

	return cmd
}

func runCycles(opts *CyclesOptions, cmd *cobra.Command) error {
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

	if opts.Command != "" {
		history, err := st.CommandHistory(ctx, opts.Command, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read command history", err)
		}
		rows := make([]CommandRow, 0, len(history))
		for _, c := range history {
			rows = append(rows, CommandRow{
				CycleID:    c.CycleID,
				Args:       c.Args,
				Status:     c.Status,
				Error:      c.Error,
				DurationMS: c.Duration.Milliseconds(),
			})
		}
		if opts.Format == "json" {
			return formatter.Success(rows)
		}
		writeCommandRows(formatter.Writer, opts.Command, rows)
		return nil
	}

	summaries, err := st.ListCycles(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list cycles", err)
	}
	rows := make([]CycleRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, CycleRow{
			ID:                s.ID,
			Seq:               s.Seq,
			StartedAt:         s.StartedAt,
			Idle:              s.Idle,
			Inputs:            s.Inputs,
			Faults:            s.Faults,
			Commands:          s.Commands,
			DecisionLatencyMS: s.DecisionLatency.Milliseconds(),
			DecisionError:     s.DecisionError,
		})
	}
	if opts.Format == "json" {
		return formatter.Success(rows)
	}
	writeCycleRows(formatter.Writer, rows)
	return nil
}

func writeCycleRows(w io.Writer, rows []CycleRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No cycles recorded.")
		return
	}
	t := newTable("SEQ", "ID", "STARTED", "INPUTS", "FAULTS", "COMMANDS", "LATENCY", "NOTE")
	for _, r := range rows {
		note := ""
		switch {
		case r.DecisionError != "":
			note = "decision failed"
		case r.Idle:
			note = "idle"
		}
		t.Row(
			strconv.FormatInt(r.Seq, 10),
			r.ID,
			r.StartedAt.Format(time.TimeOnly),
			strconv.Itoa(r.Inputs),
			strconv.Itoa(r.Faults),
			strconv.Itoa(r.Commands),
			fmt.Sprintf("%dms", r.DecisionLatencyMS),
			note,
		)
	}
	fmt.Fprintln(w, t.Render())
}

func writeCommandRows(w io.Writer, name string, rows []CommandRow) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "No invocations of %s recorded.\n", name)
		return
	}
	t := newTable("CYCLE", "CALL", "STATUS", "DURATION", "ERROR")
	for _, r := range rows {
		t.Row(
			r.CycleID,
			fmt.Sprintf("%s(%s)", name, strings.Join(r.Args, ", ")),
			r.Status,
			fmt.Sprintf("%dms", r.DurationMS),
			r.Error,
		)
	}
	fmt.Fprintln(w, t.Render())
}

// newTable renders borderless columns that stay readable when piped.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().PaddingRight(2)
		}).
		Headers(headers...)
}
