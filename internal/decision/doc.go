// Package decision adapts a language model into the decision step of a fusion
// cycle: a prompt goes in, a validated ir.Decision or a typed failure comes
// out.
//
// The model is told which commands exist through a Catalog built from the
// registered action handlers. The same catalog drives three artifacts:
//
//   - Describe: the prompt block listing commands and their arguments
//   - JSONSchema / GeminiSchema: the structured-output schema sent to the model
//   - Schema: a CUE definition that validates the raw response before it is
//     decoded
//
// A failed decision never yields partial commands. Adapter.Ask returns either
// a complete Decision (possibly empty) or an *Error whose Code tells transport,
// timeout, schema and reentrancy failures apart.
package decision
