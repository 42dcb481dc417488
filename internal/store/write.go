package store

import (
	"context"
	"fmt"

	"github.com/roach88/fuser/internal/fuser"
)

var _ fuser.Recorder = (*Store)(nil)

// RecordCycle implements fuser.Recorder.
func (s *Store) RecordCycle(ctx context.Context, r fuser.CycleReport) error {
	return s.WriteCycle(ctx, FromReport(r))
}

// WriteCycle atomically inserts a cycle with its inputs, faults and commands.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: rewriting a known cycle ID
// leaves the first trace untouched.
func (s *Store) WriteCycle(ctx context.Context, c CycleRecord) error {
	if c.ID == "" {
		return fmt.Errorf("write cycle: id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write cycle: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cycles
		(id, seq, started_at, skipped_wait, idle, prompt, prompt_hash,
		 fuse_end, decision_start, decision_end, decision_hash, decision_error,
		 runtime_version, trace_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.Seq,
		nanos(c.StartedAt),
		boolInt(c.SkippedWait),
		boolInt(c.Idle),
		c.Prompt,
		c.PromptHash,
		nanos(c.Timings.FuseEnd),
		nanos(c.Timings.DecisionStart),
		nanos(c.Timings.DecisionEnd),
		c.DecisionHash,
		c.DecisionError,
		c.RuntimeVersion,
		c.TraceVersion,
	)
	if err != nil {
		return fmt.Errorf("write cycle %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write cycle %s: rows affected: %w", c.ID, err)
	}
	if n == 0 {
		return nil
	}

	for i, in := range c.Inputs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cycle_inputs (cycle_id, position, source, text)
			VALUES (?, ?, ?, ?)
		`, c.ID, i, in.Source, in.Text); err != nil {
			return fmt.Errorf("write cycle %s: input %d: %w", c.ID, i, err)
		}
	}

	for i, f := range c.Faults {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cycle_faults (cycle_id, position, source, error)
			VALUES (?, ?, ?, ?)
		`, c.ID, i, f.Source, f.Error); err != nil {
			return fmt.Errorf("write cycle %s: fault %d: %w", c.ID, i, err)
		}
	}

	for i, cmd := range c.Commands {
		args, err := marshalArgs(cmd.Args)
		if err != nil {
			return fmt.Errorf("write cycle %s: command %d: %w", c.ID, i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cycle_commands (cycle_id, position, name, args, status, error, duration_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, i, cmd.Name, args, cmd.Status, cmd.Error, int64(cmd.Duration)); err != nil {
			return fmt.Errorf("write cycle %s: command %d: %w", c.ID, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write cycle %s: commit: %w", c.ID, err)
	}
	return nil
}
