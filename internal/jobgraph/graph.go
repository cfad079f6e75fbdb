package jobgraph

import (
	"fmt"

	"iomanager/internal/farm"
	"iomanager/internal/frames"
	"iomanager/internal/rows"
	"iomanager/internal/shotgrid"
)

// Kind classifies a job in the graph.
type Kind string

const (
	KindScript         Kind = "script-generate"
	KindRenderSequence Kind = "render-sequence"
	KindRenderMovie    Kind = "render-movie"
	KindCopy           Kind = "copy"
	KindUpload         Kind = "upload"
	KindComp           Kind = "comp-script"
)

// Output is a requested render product.
type Output string

const (
	OutputPlate Output = "plate"
	OutputJPG   Output = "jpg"
	OutputPNG   Output = "png"
	OutputMovie Output = "mov"
)

// IsSequence reports whether o renders numbered frames.
func (o Output) IsSequence() bool {
	return o == OutputPlate || o == OutputJPG || o == OutputPNG
}

// Job is one farm submission. DependsOn holds indices of earlier jobs in the
// same graph; ID is filled in once the farm accepts the job.
type Job struct {
	Kind            Kind
	Output          Output
	Name            string
	BatchName       string
	Pool            string
	SecondaryPool   string
	Plugin          string
	Priority        int
	Range           frames.Range
	ChunkSize       int
	ConcurrentTasks int
	DependsOn       []int
	Script          string
	PluginInfo      map[string]string
	ID              farm.JobID
}

// Graph is the job list for one row.
type Graph struct {
	Row  rows.Row
	Shot shotgrid.Shot
	Task shotgrid.Entity
	Jobs []Job
}

func (g *Graph) add(job Job) int {
	g.Jobs = append(g.Jobs, job)
	return len(g.Jobs) - 1
}

// Indices returns the positions of jobs of the given kinds.
func (g *Graph) Indices(kinds ...Kind) []int {
	var out []int
	for i, job := range g.Jobs {
		for _, kind := range kinds {
			if job.Kind == kind {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// Validate checks that every edge points at an earlier job.
func (g *Graph) Validate() error {
	for i, job := range g.Jobs {
		for _, dep := range job.DependsOn {
			if dep < 0 || dep >= i {
				return fmt.Errorf("job %d (%s) depends on %d: edges must point at earlier jobs", i, job.Name, dep)
			}
		}
	}
	return nil
}

// Stages groups job indices by dependency depth. Jobs in one stage depend
// only on jobs in earlier stages.
func (g *Graph) Stages() [][]int {
	depth := make([]int, len(g.Jobs))
	var stages [][]int
	for i, job := range g.Jobs {
		level := 0
		for _, dep := range job.DependsOn {
			if dep >= 0 && dep < i {
				level = max(level, depth[dep]+1)
			}
		}
		depth[i] = level
		for len(stages) <= level {
			stages = append(stages, nil)
		}
		stages[level] = append(stages[level], i)
	}
	return stages
}

// Spec converts job i into a farm spec, resolving dependencies through the
// ids already assigned to earlier jobs.
func (g *Graph) Spec(i int) (farm.Spec, error) {
	job := g.Jobs[i]
	deps := make([]farm.JobID, 0, len(job.DependsOn))
	for _, dep := range job.DependsOn {
		if dep < 0 || dep >= i || g.Jobs[dep].ID == "" {
			return farm.Spec{}, fmt.Errorf("job %q: dependency %d not submitted", job.Name, dep)
		}
		deps = append(deps, g.Jobs[dep].ID)
	}
	spec := farm.Spec{
		Name:            job.Name,
		BatchName:       job.BatchName,
		Pool:            job.Pool,
		SecondaryPool:   job.SecondaryPool,
		Priority:        job.Priority,
		Plugin:          job.Plugin,
		Frames:          job.Range,
		ChunkSize:       job.ChunkSize,
		ConcurrentTasks: job.ConcurrentTasks,
		Dependencies:    deps,
		PluginInfo:      job.PluginInfo,
	}
	return spec.Clone(), nil
}
