package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"iomanager/internal/api"
	"iomanager/internal/batch"
	"iomanager/internal/frames"
	"iomanager/internal/jobgraph"
	"iomanager/internal/ledger"
	"iomanager/internal/metrics"
	"iomanager/internal/reconcile"
	"iomanager/internal/rows"
	"iomanager/internal/scripts"
	"iomanager/internal/testsupport"
)

type fixture struct {
	server  *api.Server
	farm    *testsupport.FakeFarm
	repo    *testsupport.FakeRepository
	ledger  *ledger.Store
	drive   string
	httpsrv *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithOutputs("jpg"))
	renderer, err := scripts.New()
	if err != nil {
		t.Fatalf("scripts.New: %v", err)
	}
	f := &fixture{
		farm:   &testsupport.FakeFarm{},
		repo:   testsupport.NewFakeRepository(),
		ledger: testsupport.MustOpenLedger(t, cfg),
		drive:  cfg.Paths.SharedDrive,
	}
	settings := batch.SettingsFromConfig(cfg)
	settings.Targets.ChunkSize = 50
	collector := metrics.NewCollector()
	f.server = &api.Server{
		Processor: batch.NewProcessor(jobgraph.NewBuilder(renderer, f.repo, nil), f.farm, f.repo, f.ledger, collector, nil),
		Planner:   jobgraph.NewBuilder(scripts.Preview{}, nil, nil),
		Editor:    f.repo,
		Ledger:    f.ledger,
		Metrics:   collector,
		Settings:  settings,
		Reconcile: reconcile.Settings{ConfiguredStart: 1001, FPS: 24},
		LockPath:  cfg.LockPath(),
	}
	f.httpsrv = httptest.NewServer(f.server.Handler())
	t.Cleanup(f.httpsrv.Close)
	return f
}

func (f *fixture) post(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(f.httpsrv.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.httpsrv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func plateRow(t *testing.T, root, shot string) rows.Row {
	t.Helper()
	scan := shot + "_sp0_v001"
	dir := filepath.Join(root, scan)
	testsupport.WriteSequence(t, dir, scan+".", ".jpg", testsupport.FrameSpan(1001, 1100)...)
	return rows.Row{
		ScanName:   scan,
		Sequence:   strings.SplitN(shot, "_", 2)[0],
		Shot:       shot,
		PlateType:  rows.SubPlate,
		Tag:        "sp0",
		Version:    1,
		Kind:       rows.KindSequence,
		SourcePath: dir,
		OrgRange:   frames.Range{Start: 1001, End: 1100},
		StartFrame: 1001,
		EndFrame:   1100,
		Duration:   100,
		Confirmed:  true,
	}
}

func TestReconcileAppliesFrameHandle(t *testing.T) {
	f := newFixture(t)
	row := plateRow(t, t.TempDir(), "A01_001")

	resp, data := f.post(t, "/api/rows/reconcile", api.ReconcileRequest{Row: row, Field: "frame-handle", Value: "8"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	got := decode[api.ReconcileResponse](t, data)
	if got.Result != "applied" {
		t.Fatalf("result = %q (%s)", got.Result, got.Message)
	}
	if got.Row.FrameHandle != 8 || got.Row.StartFrame != 993 || got.Row.EndFrame != 1092 {
		t.Fatalf("unexpected row %+v", got.Row)
	}
	if resp.Header.Get("X-Correlation-ID") == "" {
		t.Fatal("expected correlation id header")
	}
}

func TestReconcileRejectsGarbageAndCountsIt(t *testing.T) {
	f := newFixture(t)
	row := plateRow(t, t.TempDir(), "A01_001")
	row.FrameHandle = 4

	_, data := f.post(t, "/api/rows/reconcile", api.ReconcileRequest{Row: row, Field: "frame_handle", Value: "abc"})
	got := decode[api.ReconcileResponse](t, data)
	if got.Result != "rejected" || got.Message == "" {
		t.Fatalf("expected rejection, got %+v", got)
	}
	if got.Row.FrameHandle != 0 {
		t.Fatalf("rejected field should be cleared, got %d", got.Row.FrameHandle)
	}

	_, body := f.get(t, "/metrics")
	if !strings.Contains(string(body), `iomanager_reconcile_edits_total{field="frame_handle",result="rejected"} 1`) {
		t.Fatalf("expected rejection counter in metrics output")
	}
}

func TestReconcileUnknownField(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.post(t, "/api/rows/reconcile", api.ReconcileRequest{Field: "colour", Value: "1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPlanPreviewsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	root := t.TempDir()
	good := plateRow(t, root, "A01_001")
	gapped := plateRow(t, root, "A01_002")
	if err := os.Remove(filepath.Join(gapped.SourcePath, "A01_002_sp0_v001.1050.jpg")); err != nil {
		t.Fatalf("remove frame: %v", err)
	}

	resp, data := f.post(t, "/api/plan", api.RowsRequest{Rows: []rows.Row{good, gapped}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	plan := decode[api.PlanResponse](t, data)
	if len(plan.Rows) != 2 {
		t.Fatalf("expected 2 plan rows, got %d", len(plan.Rows))
	}
	// script plus two jpg chunks; previews never add the upload job
	if n := len(plan.Rows[0].Jobs); n != 3 {
		t.Fatalf("expected 3 jobs, got %d: %+v", n, plan.Rows[0].Jobs)
	}
	if plan.Rows[0].Jobs[1].Frames != "1001-1050" || plan.Rows[0].Jobs[2].DependsOn[0] != 0 {
		t.Fatalf("unexpected chunk jobs %+v", plan.Rows[0].Jobs)
	}
	if plan.Rows[1].FailureKind != "sequence_gap" {
		t.Fatalf("expected gap failure, got %+v", plan.Rows[1])
	}
	if f.farm.Count() != 0 || f.repo.ShotCalls != 0 {
		t.Fatalf("plan must not submit or look up shots")
	}
	_ = filepath.WalkDir(f.drive, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			t.Fatalf("plan wrote %s", path)
		}
		return nil
	})
}

func TestBatchSubmitsAndRecordsRun(t *testing.T) {
	f := newFixture(t)
	root := t.TempDir()
	body := api.RowsRequest{Rows: []rows.Row{plateRow(t, root, "A01_001"), plateRow(t, root, "A01_002")}}

	resp, data := f.post(t, "/api/batches", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	result := decode[api.BatchResponse](t, data)
	if !result.OK || result.RunID == "" || len(result.Rows) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.farm.Count() != 8 {
		t.Fatalf("expected 8 farm jobs, got %d", f.farm.Count())
	}

	_, data = f.get(t, "/api/runs")
	runs := decode[api.RunListResponse](t, data)
	if len(runs.Runs) != 1 || runs.Runs[0].ID != result.RunID || runs.Runs[0].Status != "succeeded" {
		t.Fatalf("unexpected runs %+v", runs)
	}

	_, data = f.get(t, "/api/runs/"+result.RunID)
	detail := decode[api.RunDetailResponse](t, data)
	if len(detail.Rows) != 2 || len(detail.Jobs) != 8 {
		t.Fatalf("unexpected detail rows=%d jobs=%d", len(detail.Rows), len(detail.Jobs))
	}
	if detail.Rows[0].Status != "submitted" || detail.Jobs[0].FarmID == "" {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestBatchNothingSelected(t *testing.T) {
	f := newFixture(t)
	row := plateRow(t, t.TempDir(), "A01_001")
	row.Confirmed = false

	resp, data := f.post(t, "/api/batches", api.RowsRequest{Rows: []rows.Row{row}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", resp.StatusCode, data)
	}
	result := decode[api.BatchResponse](t, data)
	if result.RunID != "" || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestBatchRejectedWhileLocked(t *testing.T) {
	f := newFixture(t)
	lock, err := ledger.AcquireLock(f.server.LockPath)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	resp, _ := f.post(t, "/api/batches", api.RowsRequest{Rows: []rows.Row{plateRow(t, t.TempDir(), "A01_001")}})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if f.farm.Count() != 0 {
		t.Fatal("locked batch must not submit")
	}
}

func TestPublishWithoutRepository(t *testing.T) {
	f := newFixture(t)
	f.server.Editor = nil
	row := rows.Row{ScanName: "A01_001_edit", Shot: "A01_001", PlateType: rows.EditPlate, Confirmed: true}

	resp, data := f.post(t, "/api/edits/publish", api.RowsRequest{Rows: []rows.Row{row}})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", resp.StatusCode, data)
	}
}

func TestRunNotFound(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.get(t, "/api/runs/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp, _ = f.get(t, "/api/runs?limit=zero")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

type pinger func(context.Context) error

func (p pinger) Ping(ctx context.Context) error { return p(ctx) }

func TestHealthReportsFailingCheck(t *testing.T) {
	f := newFixture(t)
	f.server.Checks = map[string]api.Pinger{
		"farm":     pinger(func(context.Context) error { return nil }),
		"shotgrid": pinger(func(context.Context) error { return errors.New("401") }),
	}

	_, data := f.get(t, "/healthz")
	health := decode[api.HealthResponse](t, data)
	if health.Status != "degraded" || len(health.Checks) != 2 {
		t.Fatalf("unexpected health %+v", health)
	}
	if health.Checks[0].Name != "farm" || !health.Checks[0].OK || health.Checks[1].OK {
		t.Fatalf("unexpected checks %+v", health.Checks)
	}
}

func TestUnknownBodyFieldRejected(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Post(f.httpsrv.URL+"/api/plan", "application/json", strings.NewReader(`{"rowz": []}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
