package testutil

import (
	"strconv"
	"sync/atomic"
)

// SequentialIDs generates prefix-1, prefix-2, ... and never runs out.
//
// It satisfies fuser.IDGenerator. An empty prefix defaults to "cycle".
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialIDs creates a generator with the given prefix.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "cycle"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialIDs) Generate() string {
	return g.prefix + "-" + strconv.FormatInt(g.n.Add(1), 10)
}
