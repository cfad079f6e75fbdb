package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"iomanager/internal/config"
	"iomanager/internal/farm"
	"iomanager/internal/jobgraph"
	"iomanager/internal/ledger"
	"iomanager/internal/logging"
	"iomanager/internal/metrics"
	"iomanager/internal/rows"
	"iomanager/internal/services"
)

// GraphBuilder builds the job graph of one row.
type GraphBuilder interface {
	Build(ctx context.Context, row rows.Row, targets jobgraph.Targets, cache *jobgraph.ShotCache) (*jobgraph.Graph, error)
}

// Recorder persists run history. *ledger.Store satisfies it.
type Recorder interface {
	BeginRun(ctx context.Context, id string, kind ledger.RunKind, project string) error
	RecordRow(ctx context.Context, rec ledger.RowRecord) error
	RecordJob(ctx context.Context, rec ledger.JobRecord) error
	FinishRun(ctx context.Context, id string, rowCount, errorCount int) error
}

// Settings carries the per-run configuration.
type Settings struct {
	Targets           jobgraph.Targets
	SubmitTimeout     time.Duration
	SubmitConcurrency int
	EditTask          string
}

// SettingsFromConfig maps configuration onto Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Targets:           jobgraph.TargetsFromConfig(cfg),
		SubmitTimeout:     cfg.SubmitTimeout(),
		SubmitConcurrency: cfg.Farm.SubmitConcurrency,
		EditTask:          jobgraph.EditTask.Task,
	}
}

// RowOutcome is the result of one row.
type RowOutcome struct {
	Index    int
	ScanName string
	Status   ledger.RowStatus
	Jobs     []jobgraph.Job
	Err      error
}

// Result summarizes a run. The run succeeded iff Errors is empty.
type Result struct {
	RunID  string
	Errors []error
	Rows   []RowOutcome
}

// OK reports whether every row succeeded.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Processor runs batches.
type Processor struct {
	Builder    GraphBuilder
	Farm       farm.Submitter
	Repository jobgraph.ShotRepository
	Ledger     Recorder
	Metrics    *metrics.Collector
	Logger     *slog.Logger
	NewID      func() string
	Copy       func(src, dst string) error
}

// NewProcessor wires a processor with default id generation.
func NewProcessor(builder GraphBuilder, submitter farm.Submitter, repo jobgraph.ShotRepository, recorder Recorder, collector *metrics.Collector, logger *slog.Logger) *Processor {
	return &Processor{
		Builder:    builder,
		Farm:       submitter,
		Repository: repo,
		Ledger:     recorder,
		Metrics:    collector,
		Logger:     logging.NewComponentLogger(logger, "batch"),
		NewID:      uuid.NewString,
	}
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger == nil {
		return logging.NewNop()
	}
	return p.Logger
}

func (p *Processor) newRunID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

func rowError(index int, row rows.Row, err error) error {
	return fmt.Errorf("row %d (%s): %w", index+1, row.ScanName, err)
}

func confirmedIndices(all []rows.Row, keep func(rows.Row) bool) []int {
	var out []int
	for i, row := range all {
		if row.Confirmed && keep(row) {
			out = append(out, i)
		}
	}
	return out
}

// Process submits every confirmed row in caller order. Cancellation is
// honoured between rows only: a row that has started is built and
// submitted under a context detached from ctx's cancellation, so it is
// never left half-submitted. The per-submit timeout still applies.
func (p *Processor) Process(ctx context.Context, all []rows.Row, settings Settings) Result {
	selected := confirmedIndices(all, func(rows.Row) bool { return true })
	if len(selected) == 0 {
		return Result{Errors: []error{services.Wrap(services.ErrNothingSelected, "batch", "process", "no confirmed rows", nil)}}
	}

	result := Result{RunID: p.newRunID()}
	ctx = services.WithRunID(ctx, result.RunID)
	logger := logging.WithContext(ctx, p.logger())
	done := p.Metrics.BatchStarted()
	defer done()

	p.beginRun(ctx, result.RunID, ledger.RunProcess, settings.Targets.Project)
	logger.Info("batch started", logging.Args(logging.Int("rows", len(selected)), logging.String("project", settings.Targets.Project))...)

	cache := jobgraph.NewShotCache(p.Repository)
	for n, index := range selected {
		if err := ctx.Err(); err != nil {
			remaining := len(selected) - n
			result.Errors = append(result.Errors, fmt.Errorf("batch cancelled with %d rows not processed: %w", remaining, err))
			break
		}
		rowCtx := context.WithoutCancel(services.WithRowIndex(ctx, index+1))
		outcome := p.processRow(rowCtx, index, all[index], settings, cache, result.RunID)
		result.Rows = append(result.Rows, outcome)
		if outcome.Err != nil {
			result.Errors = append(result.Errors, rowError(index, all[index], outcome.Err))
		}
	}

	p.finishRun(ctx, result)
	logger.Info("batch finished", logging.Args(
		logging.Int("rows", len(result.Rows)),
		logging.Int("errors", len(result.Errors)),
	)...)
	return result
}

func (p *Processor) processRow(ctx context.Context, index int, row rows.Row, settings Settings, cache *jobgraph.ShotCache, runID string) RowOutcome {
	logger := logging.WithContext(ctx, p.logger()).With(logging.Args(logging.String(logging.FieldScanName, row.ScanName))...)
	outcome := RowOutcome{Index: index, ScanName: row.ScanName}

	if err := row.Validate(); err != nil {
		outcome.Status = ledger.RowSkipped
		outcome.Err = err
		p.recordRow(ctx, runID, row, outcome)
		return outcome
	}

	graph, err := p.Builder.Build(services.WithStage(ctx, "build"), row, settings.Targets, cache)
	if err != nil {
		outcome.Status = ledger.RowFailed
		if errors.Is(err, services.ErrSequenceGap) || errors.Is(err, services.ErrValidation) {
			outcome.Status = ledger.RowSkipped
		}
		outcome.Err = err
		p.recordRow(ctx, runID, row, outcome)
		return outcome
	}

	submitted, err := p.submitGraph(services.WithStage(ctx, "submit"), graph, settings, runID, index)
	outcome.Jobs = submitted
	switch {
	case err == nil:
		outcome.Status = ledger.RowSubmitted
		logger.Info("row submitted", logging.Args(logging.Int("jobs", len(submitted)))...)
	case len(submitted) > 0:
		outcome.Status = ledger.RowPartial
		outcome.Err = err
	default:
		outcome.Status = ledger.RowFailed
		outcome.Err = err
	}
	p.recordRow(ctx, runID, row, outcome)
	return outcome
}

// submitGraph submits graph stage by stage. Jobs within a stage are
// independent and go out concurrently; a failed stage stops later stages.
func (p *Processor) submitGraph(ctx context.Context, graph *jobgraph.Graph, settings Settings, runID string, rowIndex int) ([]jobgraph.Job, error) {
	limit := max(settings.SubmitConcurrency, 1)
	var submitted []jobgraph.Job
	for _, stage := range graph.Stages() {
		var (
			mu   sync.Mutex
			errs []error
			g    errgroup.Group
		)
		g.SetLimit(limit)
		for _, idx := range stage {
			g.Go(func() error {
				err := p.submitJob(ctx, graph, idx, settings.SubmitTimeout, runID, rowIndex)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
				}
				return nil
			})
		}
		_ = g.Wait()
		for _, idx := range stage {
			if graph.Jobs[idx].ID != "" {
				submitted = append(submitted, graph.Jobs[idx])
			}
		}
		if len(errs) > 0 {
			return submitted, errors.Join(errs...)
		}
	}
	return submitted, nil
}

func (p *Processor) submitJob(ctx context.Context, graph *jobgraph.Graph, idx int, timeout time.Duration, runID string, rowIndex int) error {
	job := graph.Jobs[idx]
	spec, err := graph.Spec(idx)
	if err != nil {
		return services.Wrap(services.ErrSubmission, "batch", "resolve dependencies", job.Name, err)
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	started := time.Now()
	id, err := p.Farm.Submit(callCtx, spec)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
			err = fmt.Errorf("%w: %w", services.ErrTimeout, err)
		}
		if !errors.Is(err, services.ErrSubmission) {
			err = services.Wrap(services.ErrSubmission, "batch", "submit", job.Name, err)
		}
		p.Metrics.JobFailed(string(job.Kind), services.FailureKind(err))
		logging.WarnWithContext(logging.WithContext(ctx, p.logger()), "farm submission failed", "job_submit_failed",
			logging.String("job", job.Name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the farm web service and pool names"),
			logging.String(logging.FieldImpact, "row is only partially submitted"),
		)
		return err
	}
	graph.Jobs[idx].ID = id
	p.Metrics.JobSubmitted(string(job.Kind), time.Since(started))
	if p.Ledger != nil {
		if err := p.Ledger.RecordJob(ctx, ledger.JobRecord{
			RunID:    runID,
			RowIndex: rowIndex,
			FarmID:   string(id),
			Kind:     string(job.Kind),
			Name:     job.Name,
			Frames:   job.Range.Frames(),
		}); err != nil {
			p.ledgerWarning(ctx, err)
		}
	}
	return nil
}

func (p *Processor) beginRun(ctx context.Context, runID string, kind ledger.RunKind, project string) {
	if p.Ledger == nil {
		return
	}
	if err := p.Ledger.BeginRun(ctx, runID, kind, project); err != nil {
		p.ledgerWarning(ctx, err)
	}
}

func (p *Processor) finishRun(ctx context.Context, result Result) {
	if p.Ledger == nil {
		return
	}
	if err := p.Ledger.FinishRun(context.WithoutCancel(ctx), result.RunID, len(result.Rows), len(result.Errors)); err != nil {
		p.ledgerWarning(ctx, err)
	}
}

func (p *Processor) recordRow(ctx context.Context, runID string, row rows.Row, outcome RowOutcome) {
	p.Metrics.RowProcessed(string(outcome.Status))
	if outcome.Err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger()), "row failed", "row_failed",
			logging.String(logging.FieldScanName, row.ScanName),
			logging.String("status", string(outcome.Status)),
			logging.Error(outcome.Err),
			logging.String(logging.FieldErrorHint, hintFor(outcome.Err)),
		)
	}
	if p.Ledger == nil {
		return
	}
	rec := ledger.RowRecord{
		RunID:    runID,
		Index:    outcome.Index,
		ScanName: row.ScanName,
		Shot:     row.Shot,
		Status:   outcome.Status,
		JobCount: len(outcome.Jobs),
	}
	if outcome.Err != nil {
		rec.FailureKind = services.FailureKind(outcome.Err)
		rec.ErrorMessage = outcome.Err.Error()
	}
	if err := p.Ledger.RecordRow(context.WithoutCancel(ctx), rec); err != nil {
		p.ledgerWarning(ctx, err)
	}
}

func (p *Processor) ledgerWarning(ctx context.Context, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, p.logger()), "ledger write failed", "ledger_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"),
		logging.String(logging.FieldImpact, "run history is incomplete"),
	)
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrValidation):
		return "fix the row fields and process again"
	case errors.Is(err, services.ErrSequenceGap):
		return "restore the missing frames in the scan folder"
	case errors.Is(err, services.ErrRemoteLookup):
		return "check shot repository credentials and project name"
	case errors.Is(err, services.ErrTimeout):
		return "farm web service is slow; raise farm.submit_timeout"
	case errors.Is(err, services.ErrSubmission):
		return "inspect the farm monitor for partially submitted jobs"
	default:
		return "check logs for details"
	}
}
