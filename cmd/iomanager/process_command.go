package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"iomanager/internal/batch"
	"iomanager/internal/config"
	"iomanager/internal/farm"
	"iomanager/internal/ledger"
	"iomanager/internal/preflight"
	"iomanager/internal/services"
	"iomanager/internal/shotgrid"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Submit the selected rows to the render farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireProject(); err != nil {
				return err
			}
			manifest, _, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			processor, client, err := ctx.processor(nil)
			if err != nil {
				return err
			}
			if !skipPreflight {
				if err := runPreflight(cmd.Context(), cfg, client); err != nil {
					return err
				}
			}

			lock, err := ledger.AcquireLock(cfg.LockPath())
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			result := processor.Process(runCtx, manifest.Rows, batch.SettingsFromConfig(cfg))
			return reportResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Submit without checking paths, tools and services first")
	return cmd
}

func runPreflight(ctx context.Context, cfg *config.Config, client *shotgrid.Client) error {
	remotes := preflight.Remotes{Farm: farm.NewConfiguredDeadline(cfg)}
	if client != nil {
		remotes.ShotGrid = client
	}
	failed := preflight.Failed(preflight.RunAll(ctx, cfg, remotes))
	if len(failed) == 0 {
		return nil
	}
	lines := make([]string, 0, len(failed))
	for _, f := range failed {
		lines = append(lines, fmt.Sprintf("  %s: %s", f.Name, f.Detail))
	}
	return fmt.Errorf("preflight failed:\n%s", strings.Join(lines, "\n"))
}

// reportResult prints one line per row and turns row failures into the
// command's error.
func reportResult(out io.Writer, result batch.Result) error {
	if result.RunID == "" && len(result.Errors) > 0 {
		return result.Errors[0]
	}
	headers := []string{"#", "Scan", "Status", "Jobs", "Problem"}
	table := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		problem := ""
		if row.Err != nil {
			problem = services.FailureKind(row.Err)
		}
		table = append(table, []string{
			strconv.Itoa(row.Index + 1),
			row.ScanName,
			string(row.Status),
			strconv.Itoa(len(row.Jobs)),
			problem,
		})
	}
	fmt.Fprintln(out, renderTable(out, headers, table, []columnAlignment{alignRight, alignLeft, alignLeft, alignRight}))
	fmt.Fprintf(out, "Run %s\n", result.RunID)
	if result.OK() {
		return nil
	}
	for _, err := range result.Errors {
		fmt.Fprintf(out, "  %v\n", err)
	}
	return fmt.Errorf("%d of %d rows failed: %w", len(result.Errors), len(result.Rows), errors.Join(result.Errors...))
}
