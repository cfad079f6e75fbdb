package api

import (
	"time"

	"iomanager/internal/batch"
	"iomanager/internal/jobgraph"
	"iomanager/internal/ledger"
	"iomanager/internal/services"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromRun converts a ledger run into its DTO.
func FromRun(run ledger.Run) Run {
	dto := Run{
		ID:         run.ID,
		Kind:       string(run.Kind),
		Project:    run.Project,
		Status:     string(run.Status),
		RowCount:   run.RowCount,
		ErrorCount: run.ErrorCount,
		StartedAt:  formatTime(run.StartedAt),
	}
	if run.FinishedAt != nil {
		dto.FinishedAt = formatTime(*run.FinishedAt)
	}
	return dto
}

// FromRowRecord converts a recorded row outcome.
func FromRowRecord(rec ledger.RowRecord) RunRow {
	return RunRow{
		Index:       rec.Index,
		ScanName:    rec.ScanName,
		Shot:        rec.Shot,
		Status:      string(rec.Status),
		FailureKind: rec.FailureKind,
		Error:       rec.ErrorMessage,
		JobCount:    rec.JobCount,
		UpdatedAt:   formatTime(rec.UpdatedAt),
	}
}

// FromJobRecord converts a recorded farm job.
func FromJobRecord(rec ledger.JobRecord) Job {
	return Job{
		RowIndex:    rec.RowIndex,
		FarmID:      rec.FarmID,
		Kind:        rec.Kind,
		Name:        rec.Name,
		Frames:      rec.Frames,
		SubmittedAt: formatTime(rec.SubmittedAt),
	}
}

// FromJobs converts graph jobs, preserving dependency indices.
func FromJobs(jobs []jobgraph.Job) []PlannedJob {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]PlannedJob, len(jobs))
	for i, job := range jobs {
		out[i] = PlannedJob{
			Kind:      string(job.Kind),
			Output:    string(job.Output),
			Name:      job.Name,
			Plugin:    job.Plugin,
			Pool:      job.Pool,
			Frames:    job.Range.Frames(),
			ChunkSize: job.ChunkSize,
			DependsOn: append([]int(nil), job.DependsOn...),
			Script:    job.Script,
			FarmID:    string(job.ID),
		}
	}
	return out
}

// FromResult converts a batch or publish result.
func FromResult(result batch.Result) BatchResponse {
	resp := BatchResponse{RunID: result.RunID, OK: result.OK(), Rows: []Outcome{}}
	for _, err := range result.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	for _, row := range result.Rows {
		outcome := Outcome{
			Index:    row.Index,
			ScanName: row.ScanName,
			Status:   string(row.Status),
			Jobs:     FromJobs(row.Jobs),
		}
		if row.Err != nil {
			outcome.Error = row.Err.Error()
			outcome.FailureKind = services.FailureKind(row.Err)
		}
		resp.Rows = append(resp.Rows, outcome)
	}
	return resp
}
