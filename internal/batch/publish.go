package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"iomanager/internal/fileutil"
	"iomanager/internal/jobgraph"
	"iomanager/internal/ledger"
	"iomanager/internal/logging"
	"iomanager/internal/rows"
	"iomanager/internal/services"
	"iomanager/internal/shotgrid"
)

// EditRepository is the repository surface edit publishing needs.
type EditRepository interface {
	jobgraph.ShotRepository
	jobgraph.ShotUpdater
	CreateVersion(ctx context.Context, spec shotgrid.VersionSpec) (shotgrid.Entity, error)
	UpdateTaskStatus(ctx context.Context, task shotgrid.Entity, status string) error
	RetakeVersions(ctx context.Context, project, shot, task, typeLabel string) error
}

const (
	editVersionStatus = "rev"
	editTaskStatus    = "po"
)

// EditDestination returns where an edit row's movie is published.
func EditDestination(drive, project, editTask string, row rows.Row) string {
	dir := filepath.Join(drive, project, "sequences", row.Sequence, row.Shot, editTask, fmt.Sprintf("v%03d", row.Version))
	return filepath.Join(dir, EditCode(row)+".mov")
}

// EditCode is the published version code of an edit row.
func EditCode(row rows.Row) string {
	return fmt.Sprintf("%s_%s_v%03d_%s", row.Shot, row.TypeLabel(), row.Version, row.EditDate)
}

// PublishEdits copies each confirmed edit row's movie into the shot's edit
// folder and registers it as a version on the shot's edit task. Like
// Process it stops between rows on cancellation; a started row completes.
func (p *Processor) PublishEdits(ctx context.Context, all []rows.Row, settings Settings, repo EditRepository) Result {
	selected := confirmedIndices(all, rows.Row.IsEdit)
	if len(selected) == 0 {
		return Result{Errors: []error{services.Wrap(services.ErrNothingSelected, "batch", "publish edits", "no confirmed edit rows", nil)}}
	}
	if repo == nil {
		return Result{Errors: []error{services.Wrap(services.ErrConfiguration, "batch", "publish edits", "shot repository not configured", nil)}}
	}

	result := Result{RunID: p.newRunID()}
	ctx = services.WithRunID(ctx, result.RunID)
	p.beginRun(ctx, result.RunID, ledger.RunPublishEdits, settings.Targets.Project)

	cache := jobgraph.NewShotCache(repo)
	for n, index := range selected {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("publish cancelled with %d rows not processed: %w", len(selected)-n, err))
			break
		}
		row := all[index]
		rowCtx := context.WithoutCancel(services.WithStage(services.WithRowIndex(ctx, index+1), "publish"))
		outcome := RowOutcome{Index: index, ScanName: row.ScanName, Status: ledger.RowPublished}
		if err := p.publishEdit(rowCtx, row, settings, repo, cache); err != nil {
			outcome.Status = ledger.RowFailed
			outcome.Err = err
			result.Errors = append(result.Errors, rowError(index, row, err))
		}
		p.recordRow(rowCtx, result.RunID, row, outcome)
		result.Rows = append(result.Rows, outcome)
	}

	p.finishRun(ctx, result)
	return result
}

func (p *Processor) publishEdit(ctx context.Context, row rows.Row, settings Settings, repo EditRepository, cache *jobgraph.ShotCache) error {
	if err := row.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(row.SourcePath); err != nil {
		return services.Wrap(services.ErrValidation, "batch", "publish edit", "source movie missing", err)
	}
	targets := settings.Targets
	shot, err := cache.Shot(ctx, targets.Project, row.Sequence, row.Shot)
	if err != nil {
		return err
	}

	editTask := settings.EditTask
	if editTask == "" {
		editTask = jobgraph.EditTask.Task
	}
	dst := EditDestination(targets.SharedDrive, targets.Project, editTask, row)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "batch", "create edit dir", filepath.Dir(dst), err)
	}
	copyFile := p.Copy
	if copyFile == nil {
		copyFile = fileutil.CopyFileVerified
	}
	if err := copyFile(row.SourcePath, dst); err != nil {
		return services.Wrap(services.ErrExternalTool, "batch", "copy edit movie", dst, err)
	}

	if err := repo.UpdateShot(ctx, shot.Shot, map[string]any{
		"sg_ep":               row.Episode,
		"sg_edit_duration":    strconv.Itoa(row.OrgRange.Duration()),
		"sg_working_duration": row.Duration,
		"sg_working_cut_in":   row.StartFrame,
		"sg_working_cut_out":  row.EndFrame,
	}); err != nil {
		return err
	}

	task, err := cache.Task(ctx, shot, jobgraph.TaskStep{Step: jobgraph.EditTask.Step, Short: jobgraph.EditTask.Short, Task: editTask})
	if err != nil {
		return err
	}
	if err := repo.RetakeVersions(ctx, targets.Project, row.Shot, editTask, row.TypeLabel()); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger()), "retake of earlier edit versions failed", "retake_failed",
			logging.String(logging.FieldShot, row.Shot),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set superseded edit versions to retake by hand"),
		)
	}
	if _, err := repo.CreateVersion(ctx, shotgrid.VersionSpec{
		Project:     shot.Project,
		Shot:        shot.Shot,
		Task:        task,
		Code:        EditCode(row),
		Description: row.Description,
		MoviePath:   dst,
		Status:      editVersionStatus,
	}); err != nil {
		return err
	}
	if err := repo.UpdateTaskStatus(ctx, task, editTaskStatus); err != nil {
		return err
	}
	logging.WithContext(ctx, p.logger()).Info("edit published",
		logging.Args(logging.String(logging.FieldScanName, row.ScanName), logging.String("destination", dst))...)
	return nil
}
