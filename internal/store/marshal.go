package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/fuser/internal/ir"
)

// marshalArgs stores argument values as canonical JSON TEXT.
func marshalArgs(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := ir.MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

func unmarshalArgs(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return values, nil
}

// nanos encodes t as Unix nanoseconds, with 0 for the zero time.
func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
