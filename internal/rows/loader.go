package rows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"iomanager/internal/frames"
	"iomanager/internal/logging"
	"iomanager/internal/media/ffprobe"
	"iomanager/internal/media/framemeta"
	"iomanager/internal/media/thumbnail"
	"iomanager/internal/sequence"
)

// DefaultExcludedDirs are scan-root subfolders that never hold plates.
var DefaultExcludedDirs = []string{"_io", "xml", "@eaDir", "proxy_thumb"}

// MovieStartFrame anchors the original range of movie rows.
const MovieStartFrame = 1001

// Skipped names a scan entry that could not be turned into a row.
type Skipped struct {
	Name string
	Err  error
}

// LoadResult is the outcome of scanning a folder.
type LoadResult struct {
	Kind       Kind
	Rows       []Row
	Skipped    []Skipped
	Thumbnails []thumbnail.Task
}

// Loader builds rows from a scan root.
type Loader struct {
	Extensions []string
	Excluded   []string
	StartFrame int
	FFprobe    string
	Logger     *slog.Logger
	// Probe overrides the ffprobe invocation for movie files.
	Probe func(ctx context.Context, path string) (ffprobe.ClipInfo, error)
	// Now supplies the edit date; defaults to time.Now.
	Now func() time.Time
}

// Load scans root. Sequence subfolders win; when there are none every .mov
// file becomes a row instead. Rows come back confirmed and re-anchored to the
// configured start frame.
func (l Loader) Load(ctx context.Context, root string) (LoadResult, error) {
	logger := l.logger()
	dirs, err := l.sequenceDirs(root)
	if err != nil {
		return LoadResult{}, err
	}
	var result LoadResult
	if len(dirs) > 0 {
		result = l.loadSequences(root, dirs)
	} else {
		movies, err := movieFiles(root)
		if err != nil {
			return LoadResult{}, err
		}
		if len(movies) == 0 {
			return LoadResult{}, fmt.Errorf("%w in %s", ErrNoRows, root)
		}
		result = l.loadMovies(ctx, root, movies, false)
	}
	for i := range result.Rows {
		result.Rows[i] = Reanchor(result.Rows[i], l.startFrame())
	}
	logger.Info("scan folder loaded",
		logging.String("root", root),
		logging.String("kind", string(result.Kind)),
		logging.Int("rows", len(result.Rows)),
		logging.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// LoadEdits scans root for editorial movies. Edit rows keep their original
// 1001-based range and are dated today (YYMMDD).
func (l Loader) LoadEdits(ctx context.Context, root string) (LoadResult, error) {
	movies, err := movieFiles(root)
	if err != nil {
		return LoadResult{}, err
	}
	if len(movies) == 0 {
		return LoadResult{}, fmt.Errorf("%w in %s", ErrNoRows, root)
	}
	result := l.loadMovies(ctx, root, movies, true)
	l.logger().Info("edit folder loaded",
		logging.String("root", root),
		logging.Int("rows", len(result.Rows)),
		logging.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// Reanchor moves a plate row so that its first frame after handles lands on
// start: StartFrame = start - FrameHandle. A set retime end follows the new
// end frame.
func Reanchor(row Row, start int) Row {
	out := row.Clone()
	out.StartFrame = start - row.FrameHandle
	out.EndFrame = out.StartFrame + row.Duration - 1
	if out.RetimeEndFrame != nil {
		end := out.EndFrame
		out.RetimeEndFrame = &end
	}
	return out
}

func (l Loader) loadSequences(root string, dirs []string) LoadResult {
	logger := l.logger()
	result := LoadResult{Kind: KindSequence}
	for _, name := range dirs {
		dir := filepath.Join(root, name)
		info, err := sequence.Resolve(dir, l.Extensions)
		if err != nil {
			logger.Warn("sequence skipped",
				logging.String(logging.FieldScanName, name),
				logging.Error(err),
			)
			result.Skipped = append(result.Skipped, Skipped{Name: name, Err: err})
			continue
		}
		row, ok := newRow(name)
		if !ok {
			logger.Warn("scan name not in expected format", logging.String(logging.FieldScanName, name))
		}
		row.Kind = KindSequence
		row.SourcePath = dir
		row.OrgRange = info.Range()
		row.StartFrame = info.Start
		row.EndFrame = info.End
		row.Duration = info.Range().Duration()
		row.ClipName = name

		if header, err := framemeta.ReadHeader(info.FirstPath()); err == nil {
			row.Resolution = header.Resolution()
			if len(header.ClipNames) > 0 {
				row.ClipName = header.ClipNames[0]
			}
			if header.HasTimecode {
				tc := header.Timecode
				row.SourceTimecodeIn = &tc
			}
		} else if !errors.Is(err, framemeta.ErrUnsupported) {
			logger.Debug("frame header unreadable",
				logging.String(logging.FieldScanName, name),
				logging.Error(err),
			)
		}
		if row.SourceTimecodeIn != nil {
			if tc, err := framemeta.ReadTimecode(info.Paths[info.End]); err == nil {
				row.SourceTimecodeOut = &tc
			}
		}

		thumb := filepath.Join(dir, "proxy_thumb", name+".jpg")
		l.attachThumbnail(&result, &row, info.FirstPath(), thumb)
		result.Rows = append(result.Rows, row)
	}
	return result
}

func (l Loader) loadMovies(ctx context.Context, root string, movies []string, edit bool) LoadResult {
	logger := l.logger()
	result := LoadResult{Kind: KindMovie}
	for _, file := range movies {
		stem := strings.TrimSuffix(file, filepath.Ext(file))
		path := filepath.Join(root, file)
		clip, err := l.probe(ctx, path)
		if err != nil {
			logger.Warn("movie skipped",
				logging.String(logging.FieldScanName, stem),
				logging.Error(err),
			)
			result.Skipped = append(result.Skipped, Skipped{Name: stem, Err: err})
			continue
		}
		var row Row
		var ok bool
		if edit {
			row, ok = newEditRow(stem)
			row.EditDate = l.now().Format("060102")
		} else {
			row, ok = newRow(stem)
		}
		if !ok {
			logger.Warn("scan name not in expected format", logging.String(logging.FieldScanName, stem))
		}
		row.Kind = KindMovie
		row.SourcePath = path
		row.OrgRange = frames.Range{Start: MovieStartFrame, End: MovieStartFrame + clip.DurationFrames - 1}
		row.StartFrame = row.OrgRange.Start
		row.EndFrame = row.OrgRange.End
		row.Duration = clip.DurationFrames
		row.ClipName = clip.ReelName
		row.Resolution = clip.Resolution()
		if clip.HasTimecode && !edit {
			in := clip.StartTimecode
			out := clip.EndTimecode()
			row.SourceTimecodeIn = &in
			row.SourceTimecodeOut = &out
		}

		thumb := filepath.Join(root, "_io", "proxy_thumb", stem+".jpg")
		l.attachThumbnail(&result, &row, path, thumb)
		result.Rows = append(result.Rows, row)
	}
	return result
}

func (l Loader) attachThumbnail(result *LoadResult, row *Row, source, thumb string) {
	if _, err := os.Stat(thumb); err == nil {
		row.Thumbnail = thumb
		return
	}
	result.Thumbnails = append(result.Thumbnails, thumbnail.Task{
		Row:    len(result.Rows),
		Input:  source,
		Output: thumb,
	})
}

func newRow(name string) (Row, bool) {
	row := Row{ScanName: name, Confirmed: true, Version: 1}
	parsed, ok := sequence.ParseScanName(name)
	if !ok {
		return row, false
	}
	row.Sequence = parsed.Sequence
	row.Shot = parsed.Shot
	row.Tag = parsed.Tag
	row.Version = parsed.Version
	row.PlateType = PlateTypeFromTag(parsed.Tag)
	return row, true
}

func newEditRow(name string) (Row, bool) {
	row := Row{ScanName: name, Confirmed: true, Version: 1, PlateType: EditPlate}
	parsed, ok := sequence.ParseEditName(name)
	if !ok {
		return row, false
	}
	row.Sequence = parsed.Sequence
	row.Shot = parsed.Shot
	row.Version = parsed.Version
	row.Episode = parsed.Sequence
	return row, true
}

func (l Loader) sequenceDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read scan root: %w", err)
	}
	excluded := l.Excluded
	if len(excluded) == 0 {
		excluded = DefaultExcludedDirs
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || slices.Contains(excluded, entry.Name()) {
			continue
		}
		dirs = append(dirs, entry.Name())
	}
	slices.Sort(dirs)
	return dirs, nil
}

func movieFiles(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read scan root: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), ".mov") {
			files = append(files, entry.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

func (l Loader) probe(ctx context.Context, path string) (ffprobe.ClipInfo, error) {
	if l.Probe != nil {
		return l.Probe(ctx, path)
	}
	binary := l.FFprobe
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return ffprobe.ProbeClip(ctx, binary, path)
}

func (l Loader) startFrame() int {
	if l.StartFrame > 0 {
		return l.StartFrame
	}
	return MovieStartFrame
}

func (l Loader) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return logging.NewNop()
	}
	return logging.NewComponentLogger(l.Logger, "rows")
}
