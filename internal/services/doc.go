// Package services defines shared utilities consumed by the batch pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, row numbers, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify row failures
//     (validation, sequence gap, remote lookup, submission) for the run ledger.
//
// Use these helpers when wiring new batch logic so operational behaviour stays
// uniform across the pipeline.
package services
