// Package store provides SQLite-backed storage for the state one compilation
// run leaves for the next:
//   - Checksums: one per item, layout, code snippet, config and rules
//   - Compiled content: snapshots per representation
//   - Plans: the recorded action list per representation
//   - Dependencies: the serialized dependency graph
//   - Runs: one record per successful run
//
// # Sessions
//
// Store.Load reads everything into a Session at the start of a run. Reads
// during the run always see the previous run's state; writes are staged in
// memory. Session.Commit writes every staged change in a single transaction
// and only after the run succeeded, so an aborted run leaves the database
// untouched.
//
// # Determinism
//
// Rows are written in sorted key order and plans are stored as canonical
// JSON (internal/ir), so two identical runs produce identical databases
// apart from the run record.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
