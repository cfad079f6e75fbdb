package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"iomanager/internal/batch"
	"iomanager/internal/rows"
	"iomanager/internal/shotgrid"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Set selected rows to the next free version and pick up shot LUTs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireProject(); err != nil {
				return err
			}
			client := shotgrid.NewConfigured(cfg)
			if client == nil {
				return errors.New("validate needs shotgrid.site_url to be configured")
			}
			manifest, path, err := ctx.loadManifest()
			if err != nil {
				return err
			}

			errs := batch.ValidateVersions(cmd.Context(), manifest.Rows, cfg.Project.Name, client, ctx.log())
			if len(errs) == 1 && !hasConfirmed(manifest.Rows) {
				return errs[0]
			}
			if err := rows.WriteManifest(path, manifest); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			headers := []string{"#", "Scan", "Version", "Cube"}
			var table [][]string
			for i, row := range manifest.Rows {
				if !row.Confirmed {
					continue
				}
				table = append(table, []string{strconv.Itoa(i + 1), row.ScanName, fmt.Sprintf("v%03d", row.Version), row.Cube})
			}
			fmt.Fprintln(out, renderTable(out, headers, table, []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
			if len(errs) == 0 {
				return nil
			}
			for _, err := range errs {
				fmt.Fprintf(out, "  %v\n", err)
			}
			return fmt.Errorf("%d rows could not be validated: %w", len(errs), errors.Join(errs...))
		},
	}
}

func hasConfirmed(all []rows.Row) bool {
	for _, row := range all {
		if row.Confirmed {
			return true
		}
	}
	return false
}
