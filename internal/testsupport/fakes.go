package testsupport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"iomanager/internal/farm"
	"iomanager/internal/services"
	"iomanager/internal/shotgrid"
)

// FakeRepository is an in-memory shot repository that counts lookups.
type FakeRepository struct {
	mu         sync.Mutex
	nextID     int
	shots      map[string]shotgrid.Shot
	tasks      map[string]shotgrid.Entity
	ShotCalls  int
	TaskCalls  int
	FailShots  map[string]bool
	Updates    map[int]map[string]any
	FailUpdate bool
	Versions   []shotgrid.VersionSpec
	Statuses   map[int]string

	// TimeoutShots fails the next n lookups of a shot with a timeout.
	TimeoutShots map[string]int
	// Retakes records "shot/task/type" per RetakeVersions call.
	Retakes []string
	// PlateVersions holds the current entry passed per shot id.
	PlateVersions map[int]string
	// Published seeds NextVersion with the highest version per "shot/type".
	Published map[string]int
	LUTs      map[string]string
}

// NewFakeRepository returns an empty repository.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		nextID:    1,
		shots:     make(map[string]shotgrid.Shot),
		tasks:     make(map[string]shotgrid.Entity),
		FailShots: make(map[string]bool),
		Updates:   make(map[int]map[string]any),
		Statuses:  make(map[int]string),

		TimeoutShots:  make(map[string]int),
		PlateVersions: make(map[int]string),
		Published:     make(map[string]int),
		LUTs:          make(map[string]string),
	}
}

func (r *FakeRepository) id() int {
	r.nextID++
	return r.nextID
}

// FindOrCreateShot implements the shot repository contract.
func (r *FakeRepository) FindOrCreateShot(_ context.Context, project, sequence, shot string) (shotgrid.Shot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ShotCalls++
	if r.FailShots[shot] {
		return shotgrid.Shot{}, services.Wrap(services.ErrRemoteLookup, "shotgrid", "find shot", shot, errors.New("repository unavailable"))
	}
	if r.TimeoutShots[shot] > 0 {
		r.TimeoutShots[shot]--
		return shotgrid.Shot{}, services.Wrap(services.ErrRemoteLookup, "shotgrid", "find shot", shot, context.DeadlineExceeded)
	}
	key := project + "/" + sequence + "/" + shot
	if existing, ok := r.shots[key]; ok {
		return existing, nil
	}
	created := shotgrid.Shot{
		Project:  shotgrid.Entity{Type: "Project", ID: 1, Name: project},
		Sequence: shotgrid.Entity{Type: "Sequence", ID: r.id(), Name: sequence},
		Shot:     shotgrid.Entity{Type: "Shot", ID: r.id(), Name: shot},
	}
	r.shots[key] = created
	return created, nil
}

// FindOrCreateTask implements the shot repository contract.
func (r *FakeRepository) FindOrCreateTask(_ context.Context, _ shotgrid.Entity, shot shotgrid.Entity, step, _ string, task string) (shotgrid.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TaskCalls++
	key := fmt.Sprintf("%d/%s/%s", shot.ID, step, task)
	if existing, ok := r.tasks[key]; ok {
		return existing, nil
	}
	created := shotgrid.Entity{Type: "Task", ID: r.id(), Name: task}
	r.tasks[key] = created
	return created, nil
}

// UpdateShot records fields per shot id.
func (r *FakeRepository) UpdateShot(_ context.Context, shot shotgrid.Entity, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdate {
		return errors.New("update rejected")
	}
	r.Updates[shot.ID] = fields
	return nil
}

// CreateVersion records spec.
func (r *FakeRepository) CreateVersion(_ context.Context, spec shotgrid.VersionSpec) (shotgrid.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Versions = append(r.Versions, spec)
	return shotgrid.Entity{Type: "Version", ID: r.id(), Name: spec.Code}, nil
}

// UpdateTaskStatus records the status per task id.
func (r *FakeRepository) UpdateTaskStatus(_ context.Context, task shotgrid.Entity, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Statuses[task.ID] = status
	return nil
}

// RetakeVersions records the call.
func (r *FakeRepository) RetakeVersions(_ context.Context, _ string, shot, task, typeLabel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Retakes = append(r.Retakes, shot+"/"+task+"/"+typeLabel)
	return nil
}

// UpdatePlateVersions records current per shot id.
func (r *FakeRepository) UpdatePlateVersions(_ context.Context, shot shotgrid.Entity, _ string, current string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdate {
		return errors.New("update rejected")
	}
	r.PlateVersions[shot.ID] = current
	return nil
}

// NextVersion returns one past the seeded Published version.
func (r *FakeRepository) NextVersion(_ context.Context, _, _, shot, typeLabel string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailShots[shot] {
		return 0, services.Wrap(services.ErrRemoteLookup, "shotgrid", "search Version", shot, errors.New("repository unavailable"))
	}
	return r.Published[shot+"/"+typeLabel] + 1, nil
}

// ShotLUT returns the seeded LUT for shot.
func (r *FakeRepository) ShotLUT(_ context.Context, _, _, shot string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.LUTs[shot], nil
}

// FakeFarm records submitted specs and assigns sequential ids.
type FakeFarm struct {
	mu        sync.Mutex
	Submitted []farm.Spec
	// FailNames rejects any job whose name contains one of the substrings.
	FailNames []string
	Block     chan struct{}
	inFlight  int
	MaxFlight int
	// Accepted runs after each accepted job, outside the lock.
	Accepted func(spec farm.Spec)
}

// Submit implements farm.Submitter.
func (f *FakeFarm) Submit(ctx context.Context, spec farm.Spec) (farm.JobID, error) {
	f.mu.Lock()
	f.inFlight++
	f.MaxFlight = max(f.MaxFlight, f.inFlight)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return "", services.Wrap(services.ErrTimeout, "farm", "submit", spec.Name, ctx.Err())
		}
	}

	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrSubmission, "farm", "submit", spec.Name, err)
	}

	f.mu.Lock()
	for _, name := range f.FailNames {
		if strings.Contains(spec.Name, name) {
			f.mu.Unlock()
			return "", services.Wrap(services.ErrSubmission, "farm", "submit", spec.Name, errors.New("farm rejected job"))
		}
	}
	f.Submitted = append(f.Submitted, spec.Clone())
	id := farm.JobID(fmt.Sprintf("job-%03d", len(f.Submitted)))
	accepted := f.Accepted
	f.mu.Unlock()
	if accepted != nil {
		accepted(spec)
	}
	return id, nil
}

// Names returns the submitted job names in submission order.
func (f *FakeFarm) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.Submitted))
	for _, spec := range f.Submitted {
		names = append(names, spec.Name)
	}
	return names
}

// Count returns the number of accepted jobs.
func (f *FakeFarm) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Submitted)
}
