// Package input implements the uniform input source contract consumed by the
// fusion orchestrator.
//
// An Input wraps one producer and exposes four capabilities:
//
//	Poll         drain the producer without blocking beyond a short bounded wait
//	Convert      pure raw -> Record conversion; "nothing" means no usable data
//	Absorb       merge a Record into the fusion buffer per the source's Policy
//	FormatLatest render the buffer as a labelled prompt block
//
// Producers backed by blocking I/O (sockets, devices, native callbacks) run
// their own goroutine and hand records over through a bounded Queue. That queue
// is the only sanctioned blocking boundary between producers and the
// orchestrator.
//
// RETENTION:
// Every Input declares at construction whether formatting consumes its buffer
// (ClearOnFormat: each record reaches the prompt exactly once) or leaves it in
// place (Persist: the latest known state is shown every cycle). There is no
// default; mixing the two silently would make prompt composition
// nondeterministic.
package input
