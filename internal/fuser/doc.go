// Package fuser is the orchestrator loop.
//
// Each cycle moves through Idle, Polling, Formatting, Deciding and
// Dispatching:
//
//  1. Idle waits the cadence interval unless a source asked to skip it.
//  2. Polling steps every source concurrently. A source that fails, panics or
//     overruns its poll timeout contributes nothing this cycle.
//  3. Formatting renders every source in registration order. If nothing
//     rendered, the cycle ends without a decision.
//  4. Deciding asks the decision engine once. Failures yield zero commands.
//  5. Dispatching hands the commands to the action dispatcher in decision
//     order.
//
// Only one cycle is ever in flight. Nothing below process shutdown escapes
// Run; every fault is logged and recorded in the cycle report.
package fuser
