// Package ir provides the shared data model for the fuser runtime.
//
// This package contains type definitions and canonical encoding only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Record and Command are immutable values once constructed
//   - Command argument order is significant and preserved end to end
//   - All JSON tags use snake_case
//   - Hashes are computed over canonical JSON, never over json.Marshal output
package ir
