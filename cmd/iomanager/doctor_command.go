package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"iomanager/internal/farm"
	"iomanager/internal/preflight"
	"iomanager/internal/shotgrid"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check paths, local tools and remote services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			remotes := preflight.Remotes{Farm: farm.NewConfiguredDeadline(cfg)}
			if client := shotgrid.NewConfigured(cfg); client != nil {
				remotes.ShotGrid = client
			}
			results := preflight.RunAll(cmd.Context(), cfg, remotes)

			table := make([][]string, 0, len(results)+2)
			for _, r := range results {
				table = append(table, []string{r.Name, passLabel(r.Passed), r.Detail})
			}
			for _, status := range preflight.CheckSystemDeps(cfg) {
				if status.Optional && !status.Available {
					table = append(table, []string{status.Name, "optional", status.Description + ": " + status.Detail})
				}
			}
			if cfg.ShotGrid.SiteURL == "" {
				table = append(table, []string{"ShotGrid", "skipped", "shotgrid.site_url not set; no shot lookups or uploads"})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Check", "Result", "Detail"}, table, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d checks failed", len(failed))
			}
			return nil
		},
	}
}

func passLabel(passed bool) string {
	if passed {
		return "ok"
	}
	return "FAIL"
}
