package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"iomanager/internal/api"
	"iomanager/internal/batch"
	"iomanager/internal/rows"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the farm jobs for the selected rows",
		Long:  "Build every selected row's job graph without writing scripts, calling ShotGrid or submitting.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manifest, _, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			selected := manifest.Rows
			if !all {
				selected = confirmedRows(manifest.Rows)
			}
			if len(selected) == 0 {
				return fmt.Errorf("no rows selected (use `iomanager confirm` or --all)")
			}
			plans := api.PlanRows(cmd.Context(), ctx.planner(), batch.SettingsFromConfig(cfg).Targets, selected)
			if asJSON {
				return writeJSON(cmd, api.PlanResponse{Rows: plans})
			}

			out := cmd.OutOrStdout()
			for _, plan := range plans {
				fmt.Fprintf(out, "%s (%s)\n", plan.ScanName, plan.Connect)
				if plan.Error != "" {
					fmt.Fprintf(out, "  not submittable: %s\n\n", plan.Error)
					continue
				}
				fmt.Fprintln(out, renderPlan(out, plan.Jobs))
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Plan every row, selected or not")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderPlan(out io.Writer, jobs []api.PlannedJob) string {
	headers := []string{"#", "Kind", "Name", "Frames", "Chunk", "Plugin", "After"}
	table := make([][]string, 0, len(jobs))
	for i, job := range jobs {
		deps := make([]string, 0, len(job.DependsOn))
		for _, d := range job.DependsOn {
			deps = append(deps, strconv.Itoa(d+1))
		}
		table = append(table, []string{
			strconv.Itoa(i + 1),
			job.Kind,
			job.Name,
			job.Frames,
			strconv.Itoa(job.ChunkSize),
			job.Plugin,
			strings.Join(deps, ","),
		})
	}
	return renderTable(out, headers, table, []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight})
}

func confirmedRows(all []rows.Row) []rows.Row {
	var out []rows.Row
	for _, row := range all {
		if row.Confirmed {
			out = append(out, row)
		}
	}
	return out
}
