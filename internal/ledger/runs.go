package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const runColumns = "id, kind, project, status, row_count, error_count, started_at, finished_at"

// BeginRun inserts a running run.
func (s *Store) BeginRun(ctx context.Context, id string, kind RunKind, project string) error {
	if err := s.exec(ctx,
		`INSERT INTO runs (id, kind, project, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, kind, nullableString(project), RunRunning, s.timestamp(),
	); err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun closes a run with its row and error counts.
func (s *Store) FinishRun(ctx context.Context, id string, rowCount, errorCount int) error {
	status := RunSucceeded
	if errorCount > 0 {
		status = RunFailed
	}
	if err := s.exec(ctx,
		`UPDATE runs SET status = ?, row_count = ?, error_count = ?, finished_at = ? WHERE id = ?`,
		status, rowCount, errorCount, s.timestamp(), id,
	); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordRow stores or replaces the outcome of one row.
func (s *Store) RecordRow(ctx context.Context, rec RowRecord) error {
	if err := s.exec(ctx,
		`INSERT INTO run_rows (run_id, row_index, scan_name, shot, status, failure_kind, error_message, job_count, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (run_id, row_index) DO UPDATE SET
             status = excluded.status,
             failure_kind = excluded.failure_kind,
             error_message = excluded.error_message,
             job_count = excluded.job_count,
             updated_at = excluded.updated_at`,
		rec.RunID, rec.Index, rec.ScanName, nullableString(rec.Shot), rec.Status,
		nullableString(rec.FailureKind), nullableString(rec.ErrorMessage), rec.JobCount, s.timestamp(),
	); err != nil {
		return fmt.Errorf("record row: %w", err)
	}
	return nil
}

// RecordJob stores one accepted farm job.
func (s *Store) RecordJob(ctx context.Context, rec JobRecord) error {
	if err := s.exec(ctx,
		`INSERT INTO jobs (run_id, row_index, farm_id, kind, name, frames, submitted_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.RowIndex, rec.FarmID, rec.Kind, rec.Name, nullableString(rec.Frames), s.timestamp(),
	); err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		project     sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&run.ID, &run.Kind, &project, &run.Status, &run.RowCount, &run.ErrorCount, &startedRaw, &finishedRaw); err != nil {
		return nil, err
	}
	run.Project = project.String
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return &run, nil
}

// GetRun returns the run with id, or nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit below 1 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// RunRows returns the row outcomes of a run in row order.
func (s *Store) RunRows(ctx context.Context, runID string) ([]RowRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, row_index, scan_name, shot, status, failure_kind, error_message, job_count, updated_at
         FROM run_rows WHERE run_id = ? ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run rows: %w", err)
	}
	defer rows.Close()

	var out []RowRecord
	for rows.Next() {
		var (
			rec        RowRecord
			shot       sql.NullString
			kind       sql.NullString
			message    sql.NullString
			updatedRaw string
		)
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.ScanName, &shot, &rec.Status, &kind, &message, &rec.JobCount, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		rec.Shot = shot.String
		rec.FailureKind = kind.String
		rec.ErrorMessage = message.String
		if updated, err := parseTimeString(updatedRaw); err == nil {
			rec.UpdatedAt = updated
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RunJobs returns the jobs of a run in submission order.
func (s *Store) RunJobs(ctx context.Context, runID string) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, row_index, farm_id, kind, name, frames, submitted_at
         FROM jobs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var (
			rec          JobRecord
			framesValue  sql.NullString
			submittedRaw string
		)
		if err := rows.Scan(&rec.RunID, &rec.RowIndex, &rec.FarmID, &rec.Kind, &rec.Name, &framesValue, &submittedRaw); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.Frames = framesValue.String
		if submitted, err := parseTimeString(submittedRaw); err == nil {
			rec.SubmittedAt = submitted
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
