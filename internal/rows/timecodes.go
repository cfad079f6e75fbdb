package rows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"iomanager/internal/frames"
	"iomanager/internal/media/ffprobe"
	"iomanager/internal/media/framemeta"
	"iomanager/internal/sequence"
)

// ErrNoSourceTimecode reports a row whose source carries no start timecode.
var ErrNoSourceTimecode = errors.New("source has no start timecode")

// TimecodeSource looks up the start timecode of a row's source media:
// the embedded timecode of the first frame for sequences, the container
// start timecode for movies.
type TimecodeSource struct {
	FFprobe    string
	Extensions []string
	Probe      func(ctx context.Context, path string) (ffprobe.ClipInfo, error)
}

// SourceStart implements the reconciler's timecode collaborator.
func (s TimecodeSource) SourceStart(ctx context.Context, row Row) (frames.Timecode, error) {
	if strings.TrimSpace(row.SourcePath) == "" {
		return frames.Timecode{}, fmt.Errorf("row %s: source path unknown", row.ScanName)
	}
	switch row.Kind {
	case KindMovie:
		clip, err := s.probe(ctx, row.SourcePath)
		if err != nil {
			return frames.Timecode{}, err
		}
		if !clip.HasTimecode {
			return frames.Timecode{}, fmt.Errorf("%s: %w", row.SourcePath, ErrNoSourceTimecode)
		}
		return clip.StartTimecode, nil
	default:
		info, err := sequence.Resolve(row.SourcePath, s.Extensions)
		if err != nil {
			return frames.Timecode{}, err
		}
		tc, err := framemeta.ReadTimecode(info.FirstPath())
		if err != nil {
			return frames.Timecode{}, fmt.Errorf("%w: %w", ErrNoSourceTimecode, err)
		}
		return tc, nil
	}
}

func (s TimecodeSource) probe(ctx context.Context, path string) (ffprobe.ClipInfo, error) {
	if s.Probe != nil {
		return s.Probe(ctx, path)
	}
	binary := s.FFprobe
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return ffprobe.ProbeClip(ctx, binary, path)
}
