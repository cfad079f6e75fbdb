package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"iomanager/internal/logging"
	"iomanager/internal/reconcile"
	"iomanager/internal/rows"
)

func newEditCommand(ctx *commandContext) *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "edit <row> <field> [value]",
		Short: "Change a row's timing field and reconcile the rest",
		Long: "Apply one timing edit to a manifest row. <row> is the 1-based row number or the scan name. " +
			"Fields: " + fieldNames() + ".",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manifest, path, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			index, err := resolveRow(manifest, args[0])
			if err != nil {
				return err
			}
			field, err := reconcile.ParseField(args[1])
			if err != nil {
				return err
			}
			if !clear && len(args) < 3 {
				return fmt.Errorf("a value is required unless --clear is given")
			}

			row := manifest.Rows[index]
			var updated rows.Row
			var editErr error
			if clear {
				updated = reconcile.ClearField(row, field)
			} else {
				updated, editErr = reconcile.ApplyText(cmd.Context(), row, field, args[2], ctx.reconcileSettings(cfg))
			}
			manifest.Rows[index] = updated
			if err := rows.WriteManifest(path, manifest); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if editErr != nil {
				logging.WarnWithContext(ctx.log(), "edit not applied as entered", "edit_rejected",
					logging.String(logging.FieldScanName, row.ScanName),
					logging.String("field", string(field)),
					logging.Error(editErr),
				)
				fmt.Fprintf(out, "Warning: %v\n", editErr)
			}
			fmt.Fprintln(out, renderRows(out, []rows.Row{updated}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "Blank the field instead of setting it")
	return cmd
}

func fieldNames() string {
	names := make([]string, 0, len(reconcile.Fields))
	for _, f := range reconcile.Fields {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

func newConfirmCommand(ctx *commandContext) *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "confirm <row>... | all",
		Short: "Select rows for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, path, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			if len(args) == 1 && args[0] == "all" {
				for i := range manifest.Rows {
					manifest.Rows[i].Confirmed = !off
				}
			} else {
				for _, ref := range args {
					index, err := resolveRow(manifest, ref)
					if err != nil {
						return err
					}
					manifest.Rows[index].Confirmed = !off
				}
			}
			if err := rows.WriteManifest(path, manifest); err != nil {
				return err
			}
			selected := 0
			for _, row := range manifest.Rows {
				if row.Confirmed {
					selected++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d rows selected\n", selected, len(manifest.Rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Deselect instead of select")
	return cmd
}
