// Package harness runs scripted fusion scenarios against the real fuser.
//
// A scenario declares its sources, the command handlers the model may call,
// and a list of cycles. Each cycle seeds source buffers, marks sources whose
// poll step should fail, and scripts the model's reply. The harness then runs
// exactly one fusion cycle per step and records what was fused, what was
// decided and how each command was dispatched.
//
// # Scenario Format
//
//	name: greeting
//	description: "A spoken greeting is answered out loud"
//	system: "You are a friendly racoon."
//	sources:
//	  - name: asr
//	    descriptor: Voice
//	    policy: token_accumulate
//	    retention: clear_on_format
//	handlers:
//	  - name: speech
//	  - name: move
//	    fail: servo offline
//	cycles:
//	  - records:
//	      asr: [hello, racoon]
//	    reply: '{"commands":[{"name":"speech","arguments":[{"value":"hi"}]}]}'
//	    expect:
//	      dispatched: [speech]
//	  - expect:
//	      idle: true
//	assertions:
//	  - type: command_dispatched
//	    command: speech
//	    args: [hi]
//	    status: ok
//	  - type: final_state
//	    table: cycle_commands
//	    where: { name: speech }
//	    expect: { status: ok }
//
// # Assertion Types
//
//   - command_dispatched: a command was dispatched with matching args and status
//   - command_order: commands were dispatched in the given order
//   - command_count: a command was dispatched exactly N times
//   - idle_cycles: exactly N cycles had nothing to fuse
//   - final_state: a trace table row has the expected column values
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory trace store, sequential cycle IDs
// (cycle-1, cycle-2, ...), a stepping wall clock and sequential dispatch, so
// the transcript of a scenario is byte-identical across runs and can be
// compared against a golden file.
package harness
