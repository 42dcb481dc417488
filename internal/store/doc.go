// Package store provides SQLite-backed durable storage for fusion cycle traces.
//
// Each cycle is written once, atomically, with its children:
//   - Cycles: identity, sequence, timings, prompt and decision hashes
//   - Inputs: the formatted source blocks that made up the prompt body
//   - Faults: sources that contributed nothing because they failed
//   - Commands: the decided commands with their dispatch outcome
//
// # Ordering
//
// Listing uses seq (the logical cycle clock), never wall time, with id as the
// tie-break: ORDER BY seq, id COLLATE BINARY. Children are ordered by their
// position within the cycle.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as Unix nanoseconds; 0 means "not recorded".
package store
