// Package ledger records batch runs in SQLite: one row per run, one per
// processed scan row and one per farm job accepted. Operators use it to
// follow up partially submitted rows after a failure.
//
// Writes retry on SQLITE_BUSY so the CLI and the HTTP server can share the
// database. AcquireLock provides the single-writer file lock taken around
// batch processing.
package ledger
