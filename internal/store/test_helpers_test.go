package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/fuser/internal/ir"
)

// createTestStore opens a fresh store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCycle builds a decided cycle with one input and one command.
func createTestCycle(id string, seq int64) CycleRecord {
	start := time.Unix(1700000000, 0).UTC().Add(time.Duration(seq) * time.Second)
	return CycleRecord{
		ID:         id,
		Seq:        seq,
		StartedAt:  start,
		Prompt:     "AVAILABLE INPUTS: hello",
		PromptHash: ir.MustPromptHash("AVAILABLE INPUTS: hello"),
		Timings: ir.CycleTimings{
			FuseEnd:       start.Add(10 * time.Millisecond),
			DecisionStart: start.Add(11 * time.Millisecond),
			DecisionEnd:   start.Add(311 * time.Millisecond),
		},
		RuntimeVersion: ir.RuntimeVersion,
		TraceVersion:   ir.TraceVersion,
		Inputs:         []InputRecord{{Source: "asr", Text: "hello"}},
		Commands: []CommandRecord{
			{Name: "speech", Args: []string{"hi"}, Status: "ok", Duration: 3 * time.Millisecond},
		},
	}
}

func getTableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		t.Fatalf("query tables: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan table: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?`, table)
	if err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan index: %v", err)
		}
		names = append(names, name)
	}
	return names
}
