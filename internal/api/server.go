package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"iomanager/internal/batch"
	"iomanager/internal/ledger"
	"iomanager/internal/logging"
	"iomanager/internal/metrics"
	"iomanager/internal/reconcile"
	"iomanager/internal/services"
)

// Pinger checks that a remote collaborator answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the processor and the run ledger over HTTP.
type Server struct {
	Processor *batch.Processor
	// Planner builds graphs for previews. It must not write scripts or
	// touch the shot repository.
	Planner   batch.GraphBuilder
	Editor    batch.EditRepository
	Ledger    *ledger.Store
	Metrics   *metrics.Collector
	Settings  batch.Settings
	Reconcile reconcile.Settings
	LockPath  string
	Checks    map[string]Pinger
	Logger    *slog.Logger
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.correlate)

	r.Get("/healthz", s.handleHealth)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}
	r.Route("/api", func(r chi.Router) {
		r.Post("/rows/reconcile", s.handleReconcile)
		r.Post("/plan", s.handlePlan)
		r.Post("/batches", s.handleBatch)
		r.Post("/edits/publish", s.handlePublish)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRun)
	})
	return r
}

// Serve listens on bind until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.Args(logging.String("address", listener.Addr().String()))...)
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api serve: %w", err)
	}
	return nil
}

// correlate carries the chi request id, or a fresh uuid, into the context
// loggers read from.
func (s *Server) correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if header := strings.TrimSpace(r.Header.Get("X-Correlation-ID")); header != "" {
			id = header
		}
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 32<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Args(logging.Error(err))...)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a run-level error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, services.ErrNothingSelected), errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) log() *slog.Logger {
	return logging.NewComponentLogger(s.Logger, "api-server")
}
