package api

import "iomanager/internal/rows"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes one ledger run.
type Run struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Project    string `json:"project"`
	Status     string `json:"status"`
	RowCount   int    `json:"rowCount"`
	ErrorCount int    `json:"errorCount"`
	StartedAt  string `json:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// RunRow is the recorded outcome of one row.
type RunRow struct {
	Index       int    `json:"index"`
	ScanName    string `json:"scanName"`
	Shot        string `json:"shot"`
	Status      string `json:"status"`
	FailureKind string `json:"failureKind,omitempty"`
	Error       string `json:"error,omitempty"`
	JobCount    int    `json:"jobCount"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Job is a farm job accepted during a run.
type Job struct {
	RowIndex    int    `json:"rowIndex"`
	FarmID      string `json:"farmId"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Frames      string `json:"frames"`
	SubmittedAt string `json:"submittedAt,omitempty"`
}

// RunListResponse wraps GET /api/runs.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// RunDetailResponse wraps GET /api/runs/{id}.
type RunDetailResponse struct {
	Run  Run      `json:"run"`
	Rows []RunRow `json:"rows"`
	Jobs []Job    `json:"jobs"`
}

// ReconcileRequest edits one field of one row.
type ReconcileRequest struct {
	Row   rows.Row `json:"row"`
	Field string   `json:"field"`
	Value string   `json:"value"`
	Clear bool     `json:"clear,omitempty"`
}

// ReconcileResponse carries the new row snapshot. Result is "applied",
// "rejected" or "fallback"; Message explains anything but "applied".
type ReconcileResponse struct {
	Row     rows.Row `json:"row"`
	Result  string   `json:"result"`
	Message string   `json:"message,omitempty"`
}

// RowsRequest carries the operator's rows for plan, batch and publish calls.
type RowsRequest struct {
	Rows []rows.Row `json:"rows"`
}

// PlannedJob is one node of a row's job graph.
type PlannedJob struct {
	Kind      string `json:"kind"`
	Output    string `json:"output,omitempty"`
	Name      string `json:"name"`
	Plugin    string `json:"plugin"`
	Pool      string `json:"pool"`
	Frames    string `json:"frames"`
	ChunkSize int    `json:"chunkSize"`
	DependsOn []int  `json:"dependsOn,omitempty"`
	Script    string `json:"script,omitempty"`
	FarmID    string `json:"farmId,omitempty"`
}

// PlanRow is the previewed graph of one row.
type PlanRow struct {
	Index       int          `json:"index"`
	ScanName    string       `json:"scanName"`
	Connect     string       `json:"connect"`
	Jobs        []PlannedJob `json:"jobs,omitempty"`
	Stages      [][]int      `json:"stages,omitempty"`
	FailureKind string       `json:"failureKind,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// PlanResponse wraps POST /api/plan.
type PlanResponse struct {
	Rows []PlanRow `json:"rows"`
}

// Outcome is the result of one row in a batch or publish run.
type Outcome struct {
	Index       int          `json:"index"`
	ScanName    string       `json:"scanName"`
	Status      string       `json:"status"`
	FailureKind string       `json:"failureKind,omitempty"`
	Error       string       `json:"error,omitempty"`
	Jobs        []PlannedJob `json:"jobs,omitempty"`
}

// BatchResponse wraps POST /api/batches and POST /api/edits/publish.
type BatchResponse struct {
	RunID  string    `json:"runId,omitempty"`
	OK     bool      `json:"ok"`
	Errors []string  `json:"errors,omitempty"`
	Rows   []Outcome `json:"rows"`
}

// HealthCheck reports one collaborator's reachability.
type HealthCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse wraps GET /healthz.
type HealthResponse struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks,omitempty"`
}
