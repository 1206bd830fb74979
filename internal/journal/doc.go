// Package journal records every dispatch that flows through a store into a
// SQLite table, for diagnostics and the `reflux trace` command.
//
// The journal is write-only from the store's point of view: nothing ever
// rehydrates state from it.
//
// # Record layout
//
//   - seq: logical clock value, strictly increasing per journal
//   - dispatch_id: UUIDv7 (or a fixed id in tests); UNIQUE, writes are idempotent
//   - action / state_before / state_after: RFC 8785 canonical JSON (see ir)
//   - applied: the reducer ran for this dispatch
//   - changed: the state hash differs from the previous state hash
//
// All reads are ORDER BY seq ASC so output is deterministic.
//
// # Database Configuration
//
//   - WAL mode for file-backed journals
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - one open connection; ":memory:" databases live exactly as long as it
package journal
