// Package store provides the SQLite-backed run ledger.
//
// Every tag run, successful or not, appends one row to the runs table:
// run id, start time, commit, status, final state, error code, tag name,
// version, tier, sinphase, threshold and entropy checksum. The ledger is
// an audit trail only; the annotated tag remains the authoritative record
// of a governed build.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Rows are ordered by seq, the insertion sequence, never by wall time.
package store
