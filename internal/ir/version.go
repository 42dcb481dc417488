package ir

// Version constants for the persisted trace schema and the runtime.
const (
	// TraceVersion is the cycle trace schema version.
	TraceVersion = "1"

	// RuntimeVersion is the fuser runtime version.
	RuntimeVersion = "0.1.0"
)
