// Package api serves the iomanager HTTP surface: row reconciliation, job
// graph previews, batch submission, edit publishing and run history.
//
// # Key Types
//
// Server: chi router over the batch processor, the run ledger and the
// metrics collector.
//
// Run, RunRow, Job, Outcome, PlannedJob: transport DTOs.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Rows travel as rows.Row so clients can post
// back exactly what the scanner produced. Timestamps use RFC3339 with
// milliseconds. Batch and publish requests take the same processing lock as
// the CLI, so a second submission answers 409 instead of racing the first.
package api
