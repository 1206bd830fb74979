// Package harness runs scripted counter scenarios against the store and
// checks the journaled trace, the final state and the notification sequence.
//
// # Scenario Format
//
//	name: increase_increase_decrease
//	description: "What this scenario validates"
//	initial: { count: 0 }
//	middleware: [logger, "drop:set_count"]
//	reactions:
//	  - when: 2
//	    dispatch: decrease
//	steps:
//	  - dispatch: increase
//	  - dispatch: set_count
//	    args: { count: 5 }
//	    expect_count: 1
//	  - thunk: increment_if_odd
//	expect:
//	  state: { count: 1 }
//	  notifications: [0, 1, 2, 1]
//	assertions:
//	  - type: trace_count
//	    action: set_count
//	    applied: false
//	    count: 1
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: the final state contains the expected fields
//
// # Deterministic Testing
//
// Each run uses a private in-memory journal placed outermost in the
// middleware chain, sequential dispatch ids ("dispatch-1", ...) and a fresh
// clock. The trace is read back from the journal, so dropped and nested
// dispatches appear in it with their applied flag and depth.
//
// Snapshots are serialized with ir.MarshalCanonical and compared against
// testdata/golden/<name>.golden.
package harness
