package input

import (
	"fmt"
	"strings"

	"github.com/roach88/fuser/internal/ir"
)

// Policy is a fusion buffer merge policy.
type Policy int

const (
	// PolicyUnset is the zero value and is rejected at construction.
	PolicyUnset Policy = iota

	// SingleSlot keeps only the newest record; each absorb replaces the last.
	// Used for continuously refreshed state such as a balance or a detection.
	SingleSlot

	// AppendDistinct appends a record only when its value differs from the
	// last one, so a steady value does not spam the buffer.
	AppendDistinct

	// TokenAccumulate extends the last entry with each new value, joined by a
	// space. Used for streaming partial transcripts.
	TokenAccumulate
)

// maxDistinctRecords bounds AppendDistinct history; only the newest record is
// ever formatted.
const maxDistinctRecords = 32

var policyNames = map[Policy]string{
	SingleSlot:      "single_slot",
	AppendDistinct:  "append_distinct",
	TokenAccumulate: "token_accumulate",
}

// String returns the configuration name of the policy.
func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return "unset"
}

// ParsePolicy converts a configuration name into a Policy.
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return p, nil
		}
	}
	return PolicyUnset, fmt.Errorf("unknown buffer policy %q", s)
}

// Buffer holds unconsumed records for one input. It is not safe for
// concurrent use; Input serializes access.
type Buffer struct {
	policy  Policy
	records []ir.Record
}

// NewBuffer creates an empty buffer with the given policy.
func NewBuffer(p Policy) (*Buffer, error) {
	if _, ok := policyNames[p]; !ok {
		return nil, ErrPolicyUnset
	}
	return &Buffer{policy: p}, nil
}

// Policy returns the buffer's merge policy.
func (b *Buffer) Policy() Policy {
	return b.policy
}

// Absorb merges rec into the buffer and reports whether the contents changed.
func (b *Buffer) Absorb(rec ir.Record) bool {
	switch b.policy {
	case SingleSlot:
		if len(b.records) == 1 && b.records[0].Value == rec.Value && b.records[0].Timestamp.Equal(rec.Timestamp) {
			return false
		}
		b.records = append(b.records[:0], rec)
		return true

	case AppendDistinct:
		if n := len(b.records); n > 0 && b.records[n-1].Value == rec.Value {
			return false
		}
		b.records = append(b.records, rec)
		if len(b.records) > maxDistinctRecords {
			b.records = append(b.records[:0], b.records[len(b.records)-maxDistinctRecords:]...)
		}
		return true

	case TokenAccumulate:
		if rec.Value == "" {
			return false
		}
		n := len(b.records)
		if n == 0 {
			b.records = append(b.records, rec)
			return true
		}
		// The accumulated line keeps the timestamp of its first segment.
		last := b.records[n-1]
		b.records[n-1] = ir.Record{
			Timestamp: last.Timestamp,
			Value:     last.Value + " " + rec.Value,
		}
		return true
	}
	return false
}

// Latest returns the newest record.
func (b *Buffer) Latest() (ir.Record, bool) {
	if len(b.records) == 0 {
		return ir.Record{}, false
	}
	return b.records[len(b.records)-1], true
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	return len(b.records)
}

// Records returns a copy of the buffered records, oldest first.
func (b *Buffer) Records() []ir.Record {
	out := make([]ir.Record, len(b.records))
	copy(out, b.records)
	return out
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.records = b.records[:0]
}
