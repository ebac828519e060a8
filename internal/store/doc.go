// Package store provides SQLite-backed durable storage for decision journals.
//
// The store implements an append-only log with:
//   - Runs: one row per engine run (spec hash, versions, rule count)
//   - Decision Attempts: every rule attempt the engine journaled, keyed by
//     (run_id, seq)
//
// UPDATE and DELETE on either table abort via triggers.
//
// # Critical Patterns
//
// Logical Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Enables deterministic replay regardless of wall time
//
// Deterministic Query Results
//   - Attempt queries MUST include: ORDER BY seq ASC
//   - Ensures identical results across replays
//
// Replay Parity
//   - CompareRuns diffs two runs attempt by attempt over the canonical
//     journal encoding, and reports both journal digests
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Args are stored as RFC 8785 canonical JSON via internal/ir.
package store
