// Package store provides the SQLite-backed session journal.
//
// The journal is append-only and records, per session:
//   - Patches: every patch the stream applied, keyed by (session_id, seq)
//   - Actions: every resolved action invocation and its outcome
//
// # Critical Patterns
//
// Seq-Level Idempotency
//   - UNIQUE(session_id, seq) on patches
//   - A resumed stream that journals a seq again leaves the first record
//
// Logical Time
//   - All ordering uses seq INTEGER (the stream's logical clock), NEVER
//     timestamps
//   - Replaying ReadPatches in order rebuilds the same tree
//
// Canonical Values
//   - Patch values, params and results are stored as RFC 8785 canonical
//     JSON, the same bytes PatchID hashes
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
