package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"iomanager/internal/ledger"
	"iomanager/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", ledger.RunProcess, "TEST"); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.RecordJob(ctx, ledger.JobRecord{RunID: "run-1", RowIndex: 0, FarmID: "job-1", Kind: "script-generate", Name: "[A] - Make Render NK"}); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	if err := store.RecordJob(ctx, ledger.JobRecord{RunID: "run-1", RowIndex: 0, FarmID: "job-2", Kind: "render-sequence", Name: "[A] - JPG1", Frames: "1001-1100"}); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	if err := store.RecordRow(ctx, ledger.RowRecord{RunID: "run-1", Index: 0, ScanName: "A", Status: ledger.RowFailed, FailureKind: "submission", ErrorMessage: "boom", JobCount: 1}); err != nil {
		t.Fatalf("RecordRow: %v", err)
	}
	if err := store.RecordRow(ctx, ledger.RowRecord{RunID: "run-1", Index: 0, ScanName: "A", Status: ledger.RowPartial, JobCount: 2}); err != nil {
		t.Fatalf("RecordRow upsert: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", 1, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, err)
	}
	if run.Status != ledger.RunFailed || run.ErrorCount != 1 || run.FinishedAt == nil || run.Project != "TEST" {
		t.Fatalf("unexpected run %+v", run)
	}

	rowsOut, err := store.RunRows(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunRows: %v", err)
	}
	if len(rowsOut) != 1 || rowsOut[0].Status != ledger.RowPartial || rowsOut[0].JobCount != 2 || rowsOut[0].ErrorMessage != "" {
		t.Fatalf("unexpected rows %+v", rowsOut)
	}

	jobs, err := store.RunJobs(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunJobs: %v", err)
	}
	if len(jobs) != 2 || jobs[1].FarmID != "job-2" || jobs[1].Frames != "1001-1100" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}

func TestGetRunMissing(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	run, err := store.GetRun(context.Background(), "nope")
	if err != nil || run != nil {
		t.Fatalf("expected nil run, got %v %v", run, err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.BeginRun(ctx, id, ledger.RunProcess, ""); err != nil {
			t.Fatalf("BeginRun %s: %v", id, err)
		}
	}
	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := store.BeginRun(context.Background(), "run-1", ledger.RunPublishEdits, ""); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	_ = store.Close()

	reopened, err := ledger.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	run, err := reopened.GetRun(context.Background(), "run-1")
	if err != nil || run == nil || run.Kind != ledger.RunPublishEdits {
		t.Fatalf("unexpected run after reopen: %+v %v", run, err)
	}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iomanager.lock")
	first, err := ledger.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := ledger.AcquireLock(path); !errors.Is(err, ledger.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := ledger.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	_ = second.Release()
}
