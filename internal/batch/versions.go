package batch

import (
	"context"
	"fmt"
	"log/slog"

	"iomanager/internal/logging"
	"iomanager/internal/rows"
	"iomanager/internal/services"
)

// VersionLookup reads published version state from the production tracker.
// *shotgrid.Client satisfies it.
type VersionLookup interface {
	NextVersion(ctx context.Context, project, sequence, shot, typeLabel string) (int, error)
	ShotLUT(ctx context.Context, project, sequence, shot string) (string, error)
}

// ValidateVersions sets every confirmed row's Version to the next version
// not yet published for its shot and plate type, and the Cube of plate rows
// to the shot's LUT. Rows are updated in place. A row whose lookup fails is
// left unchanged and reported; the rest still validate.
func ValidateVersions(ctx context.Context, all []rows.Row, project string, lookup VersionLookup, logger *slog.Logger) []error {
	selected := confirmedIndices(all, func(rows.Row) bool { return true })
	if len(selected) == 0 {
		return []error{services.Wrap(services.ErrNothingSelected, "batch", "validate versions", "no confirmed rows", nil)}
	}
	logger = logging.NewComponentLogger(logger, "batch")

	var errs []error
	for n, index := range selected {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("validation cancelled with %d rows not checked: %w", len(selected)-n, err))
			break
		}
		row := &all[index]
		rowCtx := services.WithRowIndex(ctx, index+1)
		next, err := lookup.NextVersion(rowCtx, project, row.Sequence, row.Shot, row.TypeLabel())
		if err != nil {
			errs = append(errs, rowError(index, *row, err))
			continue
		}
		cube := row.Cube
		if !row.IsEdit() {
			if cube, err = lookup.ShotLUT(rowCtx, project, row.Sequence, row.Shot); err != nil {
				errs = append(errs, rowError(index, *row, err))
				continue
			}
		}
		if next != row.Version {
			logging.WithContext(rowCtx, logger).Info("version bumped", logging.Args(
				logging.String(logging.FieldScanName, row.ScanName),
				logging.Int("from", row.Version),
				logging.Int("to", next),
			)...)
		}
		row.Version = next
		row.Cube = cube
	}
	return errs
}
