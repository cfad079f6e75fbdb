package farm

import (
	"context"
	"maps"
	"slices"

	"iomanager/internal/frames"
)

// JobID is the farm-assigned job identifier.
type JobID string

// Plugin names used by iomanager jobs.
const (
	PluginCommandLine = "CommandLine"
	PluginNuke        = "Nuke"
	PluginPython      = "Python"
)

// Spec describes one farm job. Frames of {0,0} mark a job that is not frame
// bound.
type Spec struct {
	Name            string
	BatchName       string
	Pool            string
	SecondaryPool   string
	Priority        int
	Plugin          string
	Frames          frames.Range
	ChunkSize       int
	ConcurrentTasks int
	Dependencies    []JobID
	PluginInfo      map[string]string
}

// Clone returns a copy that shares no slices or maps with s.
func (s Spec) Clone() Spec {
	out := s
	out.Dependencies = slices.Clone(s.Dependencies)
	out.PluginInfo = maps.Clone(s.PluginInfo)
	return out
}

// Submitter queues a job and returns its id. Implementations must be safe
// for concurrent use.
type Submitter interface {
	Submit(ctx context.Context, spec Spec) (JobID, error)
}
