package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ReadCycle returns one cycle with its children.
// Returns an error wrapping sql.ErrNoRows if the cycle does not exist.
func (s *Store) ReadCycle(ctx context.Context, id string) (CycleRecord, error) {
	var (
		c                                  CycleRecord
		started, fuseEnd, decStart, decEnd int64
		skipped, idle                      int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, started_at, skipped_wait, idle, prompt, prompt_hash,
		       fuse_end, decision_start, decision_end, decision_hash, decision_error,
		       runtime_version, trace_version
		FROM cycles
		WHERE id = ?
	`, id).Scan(
		&c.ID, &c.Seq, &started, &skipped, &idle, &c.Prompt, &c.PromptHash,
		&fuseEnd, &decStart, &decEnd, &c.DecisionHash, &c.DecisionError,
		&c.RuntimeVersion, &c.TraceVersion,
	)
	if err != nil {
		return CycleRecord{}, fmt.Errorf("read cycle %s: %w", id, err)
	}
	c.StartedAt = fromNanos(started)
	c.SkippedWait = skipped != 0
	c.Idle = idle != 0
	c.Timings.FuseEnd = fromNanos(fuseEnd)
	c.Timings.DecisionStart = fromNanos(decStart)
	c.Timings.DecisionEnd = fromNanos(decEnd)

	if c.Inputs, err = s.readInputs(ctx, id); err != nil {
		return CycleRecord{}, err
	}
	if c.Faults, err = s.readFaults(ctx, id); err != nil {
		return CycleRecord{}, err
	}
	if c.Commands, err = s.queryCommands(ctx, `
		SELECT cycle_id, name, args, status, error, duration_ns
		FROM cycle_commands
		WHERE cycle_id = ?
		ORDER BY position ASC
	`, id); err != nil {
		return CycleRecord{}, err
	}
	return c, nil
}

func (s *Store) readInputs(ctx context.Context, id string) ([]InputRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, text FROM cycle_inputs WHERE cycle_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query inputs: %w", err)
	}
	defer rows.Close()

	inputs := []InputRecord{}
	for rows.Next() {
		var in InputRecord
		if err := rows.Scan(&in.Source, &in.Text); err != nil {
			return nil, fmt.Errorf("scan input: %w", err)
		}
		inputs = append(inputs, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inputs: %w", err)
	}
	return inputs, nil
}

func (s *Store) readFaults(ctx context.Context, id string) ([]FaultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, error FROM cycle_faults WHERE cycle_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query faults: %w", err)
	}
	defer rows.Close()

	faults := []FaultRecord{}
	for rows.Next() {
		var f FaultRecord
		if err := rows.Scan(&f.Source, &f.Error); err != nil {
			return nil, fmt.Errorf("scan fault: %w", err)
		}
		faults = append(faults, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faults: %w", err)
	}
	return faults, nil
}

func (s *Store) queryCommands(ctx context.Context, query string, args ...any) ([]CommandRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	cmds := []CommandRecord{}
	for rows.Next() {
		var (
			c        CommandRecord
			argsJSON string
			duration int64
		)
		if err := rows.Scan(&c.CycleID, &c.Name, &argsJSON, &c.Status, &c.Error, &duration); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		if c.Args, err = unmarshalArgs(argsJSON); err != nil {
			return nil, err
		}
		c.Duration = time.Duration(duration)
		cmds = append(cmds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return cmds, nil
}

// ListCycles returns the newest cycles first, at most limit of them.
// A non-positive limit returns every cycle.
func (s *Store) ListCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.seq, c.started_at, c.idle, c.decision_error,
		       c.decision_start, c.decision_end,
		       (SELECT COUNT(*) FROM cycle_inputs i WHERE i.cycle_id = c.id),
		       (SELECT COUNT(*) FROM cycle_commands m WHERE m.cycle_id = c.id),
		       (SELECT COUNT(*) FROM cycle_faults f WHERE f.cycle_id = c.id)
		FROM cycles c
		ORDER BY c.seq DESC, c.id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	out := []CycleSummary{}
	for rows.Next() {
		var (
			c                         CycleSummary
			started, decStart, decEnd int64
			idle                      int
		)
		if err := rows.Scan(&c.ID, &c.Seq, &started, &idle, &c.DecisionError,
			&decStart, &decEnd, &c.Inputs, &c.Commands, &c.Faults); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		c.StartedAt = fromNanos(started)
		c.Idle = idle != 0
		if decStart != 0 && decEnd != 0 {
			c.DecisionLatency = time.Duration(decEnd - decStart)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return out, nil
}

// CommandHistory returns the most recent dispatches of one command name,
// newest first.
func (s *Store) CommandHistory(ctx context.Context, name string, limit int) ([]CommandRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryCommands(ctx, `
		SELECT m.cycle_id, m.name, m.args, m.status, m.error, m.duration_ns
		FROM cycle_commands m
		JOIN cycles c ON c.id = m.cycle_id
		WHERE m.name = ?
		ORDER BY c.seq DESC, m.cycle_id COLLATE BINARY DESC, m.position ASC
		LIMIT ?
	`, name, limit)
}

// LastSeq returns the highest persisted cycle sequence, or 0 when empty.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM cycles`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}
