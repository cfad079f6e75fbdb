package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"iomanager/internal/logging"
	"iomanager/internal/media/thumbnail"
	"iomanager/internal/rows"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var edits bool
	var noThumbs bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Build the row manifest for a scan delivery",
		Long: "Scan a delivery folder (sequence subfolders, or .mov files when there are none) " +
			"and write the row manifest used by edit, plan and process.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root, err := ctx.scanRoot(args)
			if err != nil {
				return err
			}
			loader := rows.Loader{
				Extensions: cfg.Render.SequenceExtensions,
				Excluded:   cfg.Project.ExcludedDirs,
				StartFrame: cfg.Render.StartFrame,
				FFprobe:    cfg.FFprobeBinary(),
				Logger:     ctx.log(),
			}
			var result rows.LoadResult
			if edits {
				result, err = loader.LoadEdits(cmd.Context(), root)
			} else {
				result, err = loader.Load(cmd.Context(), root)
			}
			if err != nil {
				return err
			}

			if cfg.Thumbnails.Enabled && !noThumbs && len(result.Thumbnails) > 0 {
				generateThumbnails(cmd, ctx, &result, cfg.FFmpegBinary(), cfg.Thumbnails.Workers)
			}

			path := rows.ManifestPath(root)
			if ctx.manifestFlag != nil && *ctx.manifestFlag != "" {
				if path, err = ctx.manifestPath(); err != nil {
					return err
				}
			}
			manifest := rows.Manifest{Root: root, Kind: result.Kind, Rows: result.Rows}
			if err := rows.WriteManifest(path, manifest); err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, manifest)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderRows(out, manifest.Rows))
			for _, skipped := range result.Skipped {
				fmt.Fprintf(out, "Skipped %s: %v\n", skipped.Name, skipped.Err)
			}
			fmt.Fprintf(out, "Wrote %d rows to %s\n", len(manifest.Rows), path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&edits, "edits", false, "Treat the folder as editorial movies")
	cmd.Flags().BoolVar(&noThumbs, "no-thumbnails", false, "Skip thumbnail generation")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the manifest as JSON")
	return cmd
}

func generateThumbnails(cmd *cobra.Command, ctx *commandContext, result *rows.LoadResult, ffmpeg string, workers int) {
	generated, err := thumbnail.Generate(cmd.Context(), result.Thumbnails, thumbnail.Options{
		FFmpeg:  ffmpeg,
		Workers: workers,
		Logger:  ctx.log(),
	})
	for _, res := range generated {
		if res.Err == nil && res.Task.Row < len(result.Rows) {
			result.Rows[res.Task.Row].Thumbnail = res.Task.Output
		}
	}
	if err != nil {
		logging.WarnWithContext(ctx.log(), "thumbnail generation incomplete", "thumbnail_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ffmpeg is installed"),
			logging.String(logging.FieldImpact, "rows without thumbnails"),
		)
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: some thumbnails failed: %v\n", err)
	}
}

func renderRows(out io.Writer, all []rows.Row) string {
	headers := []string{"#", "Scan", "Type", "Org", "Range", "Dur", "Handle", "Offsets", "Retime", "Sel"}
	table := make([][]string, 0, len(all))
	for i, row := range all {
		table = append(table, []string{
			strconv.Itoa(i + 1),
			row.ScanName,
			row.TypeLabel(),
			row.OrgRange.String(),
			row.WorkingRange().String(),
			strconv.Itoa(row.Duration),
			strconv.Itoa(row.FrameHandle),
			fmt.Sprintf("%d/%d", row.FirstFrameOffset, row.EndFrameOffset),
			retimeLabel(row),
			yesNo(row.Confirmed),
		})
	}
	return renderTable(out, headers, table, []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight})
}

func retimeLabel(row rows.Row) string {
	switch {
	case row.RetimeSpeed != nil && row.RetimeEndFrame != nil:
		return fmt.Sprintf("%d @%g", *row.RetimeEndFrame, *row.RetimeSpeed)
	case row.RetimeEndFrame != nil:
		return strconv.Itoa(*row.RetimeEndFrame)
	case row.RetimeTimecodeOut != nil:
		return row.RetimeTimecodeOut.String()
	default:
		return ""
	}
}
