package jobgraph

import (
	"context"
	"errors"
	"sync"

	"iomanager/internal/services"
	"iomanager/internal/shotgrid"
)

// ShotRepository finds or creates shots and tasks in the production
// tracker.
type ShotRepository interface {
	FindOrCreateShot(ctx context.Context, project, sequence, shot string) (shotgrid.Shot, error)
	FindOrCreateTask(ctx context.Context, project, shot shotgrid.Entity, step, stepShort, task string) (shotgrid.Entity, error)
}

// ShotUpdater writes publish metadata onto a shot.
type ShotUpdater interface {
	UpdateShot(ctx context.Context, shot shotgrid.Entity, fields map[string]any) error
}

// VersionKeeper retires superseded versions and maintains the shot's list
// of published plate versions.
type VersionKeeper interface {
	RetakeVersions(ctx context.Context, project, shot, task, typeLabel string) error
	UpdatePlateVersions(ctx context.Context, shot shotgrid.Entity, shotCode, current string) error
}

// TaskStep names a pipeline step and the task created under it.
type TaskStep struct {
	Step  string
	Short string
	Task  string
}

var (
	PlateTask = TaskStep{Step: "Plate", Short: "plate", Task: "plate"}
	EditTask  = TaskStep{Step: "EDIT", Short: "EDIT", Task: "edit"}
	CompTask  = TaskStep{Step: "Comp", Short: "CMP", Task: "cmp"}
)

type shotKey struct{ project, sequence, shot string }

type shotEntry struct {
	shot shotgrid.Shot
	err  error
}

type taskKey struct {
	shot int
	task string
}

type taskEntry struct {
	task shotgrid.Entity
	err  error
}

// ShotCache memoizes repository lookups for one batch run. Failed lookups
// are cached as well unless they timed out or were cancelled; those are
// retried by the next row that needs the key.
type ShotCache struct {
	repo ShotRepository

	mu    sync.Mutex
	shots map[shotKey]shotEntry
	tasks map[taskKey]taskEntry
}

// NewShotCache wraps repo. A nil repo yields a cache that reports no shots.
func NewShotCache(repo ShotRepository) *ShotCache {
	return &ShotCache{
		repo:  repo,
		shots: make(map[shotKey]shotEntry),
		tasks: make(map[taskKey]taskEntry),
	}
}

// Enabled reports whether a repository backs the cache.
func (c *ShotCache) Enabled() bool {
	return c != nil && c.repo != nil
}

// Shot resolves (project, sequence, shot).
func (c *ShotCache) Shot(ctx context.Context, project, sequence, shot string) (shotgrid.Shot, error) {
	key := shotKey{project, sequence, shot}
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.shots[key]; ok {
		return entry.shot, entry.err
	}
	resolved, err := c.repo.FindOrCreateShot(ctx, project, sequence, shot)
	if !transient(err) {
		c.shots[key] = shotEntry{shot: resolved, err: err}
	}
	return resolved, err
}

// Task resolves step's task on shot.
func (c *ShotCache) Task(ctx context.Context, shot shotgrid.Shot, step TaskStep) (shotgrid.Entity, error) {
	key := taskKey{shot: shot.Shot.ID, task: step.Step + "/" + step.Task}
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.tasks[key]; ok {
		return entry.task, entry.err
	}
	task, err := c.repo.FindOrCreateTask(ctx, shot.Project, shot.Shot, step.Step, step.Short, step.Task)
	if !transient(err) {
		c.tasks[key] = taskEntry{task: task, err: err}
	}
	return task, err
}

func transient(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, services.ErrTimeout) ||
		errors.Is(err, services.ErrTransient)
}
