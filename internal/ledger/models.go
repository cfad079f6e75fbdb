package ledger

import "time"

// RunKind distinguishes farm submissions from edit publishing.
type RunKind string

const (
	RunProcess      RunKind = "process"
	RunPublishEdits RunKind = "publish-edits"
)

// RunStatus tracks a run's lifecycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RowStatus is the recorded outcome of one scan row.
type RowStatus string

const (
	RowSubmitted RowStatus = "submitted"
	RowPartial   RowStatus = "partial"
	RowFailed    RowStatus = "failed"
	RowSkipped   RowStatus = "skipped"
	RowPublished RowStatus = "published"
)

// Run is one Process or PublishEdits invocation.
type Run struct {
	ID         string
	Kind       RunKind
	Project    string
	Status     RunStatus
	RowCount   int
	ErrorCount int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RowRecord is the outcome of one row within a run.
type RowRecord struct {
	RunID        string
	Index        int
	ScanName     string
	Shot         string
	Status       RowStatus
	FailureKind  string
	ErrorMessage string
	JobCount     int
	UpdatedAt    time.Time
}

// JobRecord is one farm job accepted during a run.
type JobRecord struct {
	RunID       string
	RowIndex    int
	FarmID      string
	Kind        string
	Name        string
	Frames      string
	SubmittedAt time.Time
}
