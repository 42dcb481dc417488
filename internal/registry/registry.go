// Package registry records the latest input per source and the timing markers
// of the current fusion cycle.
//
// The registry is process-lifetime observability state. Inputs write to it when
// they format a record, the orchestrator and decision adapter write the cycle
// timings, and renderers read snapshots. It is constructed once and injected;
// there is no package-level instance.
//
// Thread-safety: all methods are safe for concurrent use. Writes are
// last-write-wins under a single map-level lock.
package registry

import (
	"sync"
	"time"

	"github.com/roach88/fuser/internal/ir"
)

// Registry holds one current entry per source name plus the cycle timings.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]ir.Entry
	timings ir.CycleTimings
	prompt  string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]ir.Entry),
	}
}

// Add records the latest input for a source, overwriting any previous value.
// The first write for a name fixes its display position.
func (r *Registry) Add(source, value string, ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[source]; !ok {
		r.order = append(r.order, source)
	}
	r.entries[source] = ir.Entry{Source: source, Value: value, Timestamp: ts}
}

// Entries returns a snapshot of all entries in first-insertion order.
func (r *Registry) Entries() []ir.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ir.Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Lookup returns the current entry for a source.
func (r *Registry) Lookup(source string) (ir.Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[source]
	return e, ok
}

// Len returns the number of sources that have reported at least once.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Earliest returns the oldest entry timestamp, or the zero time when empty.
// Renderers use it to show inputs relative to one another.
func (r *Registry) Earliest() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var earliest time.Time
	for _, e := range r.entries {
		if earliest.IsZero() || e.Timestamp.Before(earliest) {
			earliest = e.Timestamp
		}
	}
	return earliest
}

// MarkFuseEnd records the end of the formatting phase.
func (r *Registry) MarkFuseEnd(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings.FuseEnd = t
}

// MarkDecisionStart records the start of a decision call.
func (r *Registry) MarkDecisionStart(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings.DecisionStart = t
}

// MarkDecisionEnd records the completion (or failure) of a decision call.
func (r *Registry) MarkDecisionEnd(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings.DecisionEnd = t
}

// Timings returns the current cycle timings.
func (r *Registry) Timings() ir.CycleTimings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timings
}

// SetPrompt records the most recently assembled prompt.
func (r *Registry) SetPrompt(prompt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompt = prompt
}

// Prompt returns the most recently assembled prompt.
func (r *Registry) Prompt() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prompt
}
