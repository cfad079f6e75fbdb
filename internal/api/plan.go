package api

import (
	"context"

	"iomanager/internal/batch"
	"iomanager/internal/jobgraph"
	"iomanager/internal/rows"
	"iomanager/internal/services"
)

// PlanRows previews the job graph of every row with a disabled shot cache,
// so no repository is contacted and no upload job is planned.
func PlanRows(ctx context.Context, planner batch.GraphBuilder, targets jobgraph.Targets, all []rows.Row) []PlanRow {
	out := make([]PlanRow, 0, len(all))
	for i, row := range all {
		plan := PlanRow{Index: i, ScanName: row.ScanName, Connect: row.ConnectName()}
		graph, err := buildPreview(ctx, planner, targets, row)
		if err != nil {
			plan.Error = err.Error()
			plan.FailureKind = services.FailureKind(err)
		} else {
			plan.Jobs = FromJobs(graph.Jobs)
			plan.Stages = graph.Stages()
		}
		out = append(out, plan)
	}
	return out
}

func buildPreview(ctx context.Context, planner batch.GraphBuilder, targets jobgraph.Targets, row rows.Row) (*jobgraph.Graph, error) {
	if err := row.Validate(); err != nil {
		return nil, err
	}
	return planner.Build(ctx, row, targets, jobgraph.NewShotCache(nil))
}
