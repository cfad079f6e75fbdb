package api

import (
	"context"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"iomanager/internal/batch"
	"iomanager/internal/ledger"
	"iomanager/internal/logging"
	"iomanager/internal/reconcile"
	"iomanager/internal/rows"
)

const defaultRunLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	names := make([]string, 0, len(s.Checks))
	for name := range s.Checks {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		check := HealthCheck{Name: name, OK: true}
		if err := s.Checks[name].Ping(r.Context()); err != nil {
			check.OK = false
			check.Detail = err.Error()
			resp.Status = "degraded"
		}
		resp.Checks = append(resp.Checks, check)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if !s.decode(w, r, &req) {
		return
	}
	field, err := reconcile.ParseField(req.Field)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var out rows.Row
	if req.Clear {
		out = reconcile.ClearField(req.Row, field)
	} else {
		out, err = reconcile.ApplyText(r.Context(), req.Row, field, req.Value, s.Reconcile)
	}
	resp := ReconcileResponse{Row: out, Result: "applied"}
	if err != nil {
		resp.Result = "fallback"
		if reconcile.IsRejected(err) {
			resp.Result = "rejected"
		}
		resp.Message = err.Error()
		logging.WarnWithContext(logging.WithContext(r.Context(), s.log()), "edit not applied as entered", "edit_"+resp.Result,
			logging.String(logging.FieldScanName, req.Row.ScanName),
			logging.String("field", string(field)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "field cleared or fallback values kept"),
		)
	}
	s.Metrics.EditApplied(string(field), resp.Result)
	s.writeJSON(w, http.StatusOK, resp)
}

// handlePlan previews every posted row's job graph without writing scripts,
// contacting the shot repository or submitting anything.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if s.Planner == nil {
		s.writeError(w, http.StatusServiceUnavailable, "planner not configured")
		return
	}
	var req RowsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Rows) == 0 {
		s.writeError(w, http.StatusBadRequest, "no rows")
		return
	}
	resp := PlanResponse{Rows: PlanRows(r.Context(), s.Planner, s.Settings.Targets, req.Rows)}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	s.runLocked(w, r, func(ctx context.Context, all []rows.Row) batch.Result {
		return s.Processor.Process(ctx, all, s.Settings)
	})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	s.runLocked(w, r, func(ctx context.Context, all []rows.Row) batch.Result {
		return s.Processor.PublishEdits(ctx, all, s.Settings, s.Editor)
	})
}

// runLocked decodes rows and runs fn while holding the processing lock.
// A result without a run id never started and answers with an error status.
func (s *Server) runLocked(w http.ResponseWriter, r *http.Request, fn func(context.Context, []rows.Row) batch.Result) {
	if s.Processor == nil {
		s.writeError(w, http.StatusServiceUnavailable, "processor not configured")
		return
	}
	var req RowsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.LockPath != "" {
		lock, err := ledger.AcquireLock(s.LockPath)
		if err != nil {
			s.writeError(w, statusFor(err), err.Error())
			return
		}
		defer func() { _ = lock.Release() }()
	}

	result := fn(r.Context(), req.Rows)
	if result.RunID == "" && len(result.Errors) > 0 {
		s.writeJSON(w, statusFor(result.Errors[0]), FromResult(result))
		return
	}
	s.writeJSON(w, http.StatusOK, FromResult(result))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.Ledger == nil {
		s.writeJSON(w, http.StatusOK, RunListResponse{Runs: []Run{}})
		return
	}
	limit := defaultRunLimit
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	runs, err := s.Ledger.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := RunListResponse{Runs: make([]Run, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, FromRun(run))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.Ledger == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.Ledger.GetRun(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	recs, err := s.Ledger.RunRows(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jobs, err := s.Ledger.RunJobs(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := RunDetailResponse{Run: FromRun(*run), Rows: []RunRow{}, Jobs: []Job{}}
	for _, rec := range recs {
		resp.Rows = append(resp.Rows, FromRowRecord(rec))
	}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, FromJobRecord(job))
	}
	s.writeJSON(w, http.StatusOK, resp)
}
