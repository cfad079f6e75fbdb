package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"iomanager/internal/api"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recent runs or show one run's rows and jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				resp := api.RunListResponse{Runs: make([]api.Run, 0, len(runs))}
				for _, run := range runs {
					resp.Runs = append(resp.Runs, api.FromRun(run))
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				table := make([][]string, 0, len(resp.Runs))
				for _, run := range resp.Runs {
					table = append(table, []string{run.ID, run.Kind, run.Project, run.Status,
						strconv.Itoa(run.RowCount), strconv.Itoa(run.ErrorCount), run.StartedAt})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Run", "Kind", "Project", "Status", "Rows", "Errors", "Started"}, table,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}))
				return nil
			}

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			recs, err := store.RunRows(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			jobs, err := store.RunJobs(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			detail := api.RunDetailResponse{Run: api.FromRun(*run)}
			for _, rec := range recs {
				detail.Rows = append(detail.Rows, api.FromRowRecord(rec))
			}
			for _, job := range jobs {
				detail.Jobs = append(detail.Jobs, api.FromJobRecord(job))
			}
			if asJSON {
				return writeJSON(cmd, detail)
			}

			fmt.Fprintf(out, "Run %s (%s, %s) %s\n", detail.Run.ID, detail.Run.Kind, detail.Run.Project, detail.Run.Status)
			rowTable := make([][]string, 0, len(detail.Rows))
			for _, row := range detail.Rows {
				rowTable = append(rowTable, []string{strconv.Itoa(row.Index + 1), row.ScanName, row.Status,
					strconv.Itoa(row.JobCount), row.Error})
			}
			fmt.Fprintln(out, renderTable(out, []string{"#", "Scan", "Status", "Jobs", "Error"}, rowTable,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight}))
			if len(detail.Jobs) > 0 {
				jobTable := make([][]string, 0, len(detail.Jobs))
				for _, job := range detail.Jobs {
					jobTable = append(jobTable, []string{strconv.Itoa(job.RowIndex + 1), job.FarmID, job.Kind, job.Name, job.Frames})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Row", "Farm ID", "Kind", "Name", "Frames"}, jobTable,
					[]columnAlignment{alignRight}))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
