// Package action maps decided commands onto handlers.
//
// A Handler owns one command name. Typed handlers are built with Bind, which
// checks arity, decodes the positional arguments into an input struct and
// runs an Implementation. Passthrough is the identity implementation.
//
// The Dispatcher runs one decision's commands. Unknown names are logged and
// dropped; handler errors and panics are caught per command and never abort
// the batch. Outcomes are reported in decision order.
package action
