package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/fuser/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Identifiers cannot be parameterized, so they are whitelisted instead.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Commands []CycleCommand // Dispatched commands for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Commands) > 0 {
		fmt.Fprintf(&buf, "\nDispatched:\n")
		for i, c := range e.Commands {
			fmt.Fprintf(&buf, "  [%d] %s(%s) -> %s\n", i+1, c.Name, strings.Join(c.Args, ", "), c.Status)
		}
	}
	return buf.String()
}

// assertCommandDispatched checks that some dispatched command matches the
// name and, when given, the exact args and status.
func assertCommandDispatched(cmds []CycleCommand, a Assertion) error {
	for _, c := range cmds {
		if c.Name != a.Command {
			continue
		}
		if a.Args != nil && !slices.Equal(c.Args, a.Args) {
			continue
		}
		if a.Status != "" && c.Status != a.Status {
			continue
		}
		return nil
	}

	expected := a.Command
	if a.Args != nil {
		expected += fmt.Sprintf("(%s)", strings.Join(a.Args, ", "))
	}
	if a.Status != "" {
		expected += " -> " + a.Status
	}
	return &AssertionError{
		Type:     AssertCommandDispatched,
		Expected: expected,
		Actual:   "not dispatched",
		Commands: cmds,
	}
}

// assertCommandOrder checks that the first dispatch of each command follows
// the given order. Other commands may be interleaved.
func assertCommandOrder(cmds []CycleCommand, a Assertion) error {
	positions := make(map[string]int)
	for i, c := range cmds {
		if positions[c.Name] == 0 {
			positions[c.Name] = i + 1 // 1-indexed for readability
		}
	}

	for _, name := range a.Commands {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertCommandOrder,
				Expected: fmt.Sprintf("all commands dispatched: %v", a.Commands),
				Actual:   fmt.Sprintf("missing command: %s", name),
				Commands: cmds,
			}
		}
	}

	for i := 1; i < len(a.Commands); i++ {
		prev, curr := a.Commands[i-1], a.Commands[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertCommandOrder,
				Expected: fmt.Sprintf("commands in order: %v", a.Commands),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Commands: cmds,
			}
		}
	}
	return nil
}

// assertCommandCount checks the command was dispatched exactly Count times.
func assertCommandCount(cmds []CycleCommand, a Assertion) error {
	count := 0
	for _, c := range cmds {
		if c.Name == a.Command {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertCommandCount,
			Expected: fmt.Sprintf("%d dispatches of %s", a.Count, a.Command),
			Actual:   fmt.Sprintf("%d dispatches", count),
			Commands: cmds,
		}
	}
	return nil
}

// assertIdleCycles checks exactly Count cycles had nothing to fuse.
func assertIdleCycles(cycles []CycleTrace, a Assertion) error {
	var idle []string
	for _, c := range cycles {
		if c.Idle {
			idle = append(idle, c.ID)
		}
	}
	if len(idle) != a.Count {
		return &AssertionError{
			Type:     AssertIdleCycles,
			Expected: fmt.Sprintf("%d idle cycles", a.Count),
			Actual:   fmt.Sprintf("%d idle cycles %v", len(idle), idle),
		}
	}
	return nil
}

// assertFinalState queries a trace table with parameterized SQL and checks
// the single matching row against Expect using subset semantics.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", a.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.DB().QueryContext(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	whereDesc := formatWhereClause(a.Where)
	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, whereDesc),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actual := make(map[string]any, len(columns))
	for i, col := range columns {
		actual[col] = values[i]
	}

	for key, want := range a.Expect {
		got, ok := actual[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
			}
		}
	}
	return nil
}

// buildWhereClause constructs a parameterized WHERE clause. Keys are sorted
// for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}
	return strings.Join(clauses, " AND "), args, nil
}

func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares a YAML value with a SQLite column value.
// SQLite returns integers as int64, booleans as 0/1 and TEXT as string.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		got, ok := actual.(string)
		return ok && exp == got
	case int:
		got, ok := actual.(int64)
		return ok && int64(exp) == got
	case int64:
		got, ok := actual.(int64)
		return ok && exp == got
	case bool:
		if got, ok := actual.(bool); ok {
			return exp == got
		}
		got, ok := actual.(int64)
		return ok && exp == (got != 0)
	}
	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides database access for final_state assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	cmds := result.Dispatched()

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertCommandDispatched:
			err = assertCommandDispatched(cmds, a)
		case AssertCommandOrder:
			err = assertCommandOrder(cmds, a)
		case AssertCommandCount:
			err = assertCommandCount(cmds, a)
		case AssertIdleCycles:
			err = assertIdleCycles(result.Cycles, a)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
