package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"

	"iomanager/internal/frames"
	"iomanager/internal/rows"
	"iomanager/internal/services"
)

// SourceTimecodes looks up the start timecode of a row's source media.
type SourceTimecodes interface {
	SourceStart(ctx context.Context, row rows.Row) (frames.Timecode, error)
}

// Settings carries the project values the plate rules depend on.
type Settings struct {
	ConfiguredStart int
	FPS             float64
	Timecodes       SourceTimecodes
}

// Plate applies edit to a plate row and returns the new snapshot. The
// returned row is always usable: a non-nil error explains a rejected or
// partially applied edit (*RejectedEdit, services.ErrInvalidRetime or
// services.ErrRemoteLookup) and the row reflects the fallback.
func Plate(ctx context.Context, row rows.Row, edit Edit, settings Settings) (rows.Row, error) {
	out := row.Clone()
	start := row.StartFrame
	orgDur := row.OrgRange.Duration()
	first := row.FirstFrameOffset
	last := row.EndFrameOffset
	offsetEnd := func() float64 {
		return float64(start + orgDur - 1 - first - last)
	}

	var newEnd float64
	var err error
	switch e := edit.(type) {
	case StartFrameEdit:
		start = e.Frame
		out.FrameHandle = settings.ConfiguredStart - e.Frame
		newEnd = float64(start + row.Duration - 1)
		shiftRetimeEnd(&out, int(newEnd))

	case FrameHandleEdit:
		out.FrameHandle = e.Handle
		start = settings.ConfiguredStart - e.Handle
		newEnd = float64(start + row.Duration - 1)
		shiftRetimeEnd(&out, int(newEnd))

	case FirstOffsetEdit:
		first = e.Offset
		newEnd = offsetEnd()
		if newEnd < float64(start) || e.Offset < 0 {
			err = reject(FieldFirstFrameOffset, fmt.Sprint(e.Offset), "offset leaves no frames")
			first = 0
			newEnd = float64(start + orgDur - 1)
		}
		out.FirstFrameOffset = first
		clearRetime(&out)

	case EndOffsetEdit:
		last = e.Offset
		newEnd = offsetEnd()
		if newEnd < float64(start) || e.Offset < 0 {
			err = reject(FieldEndFrameOffset, fmt.Sprint(e.Offset), "offset leaves no frames")
			last = 0
			newEnd = float64(start + orgDur - 1 - first)
		}
		out.EndFrameOffset = last
		clearRetime(&out)

	case RetimeEndEdit:
		out.RetimeTimecodeOut = nil
		out.RetimeSpeed = nil
		newDur := e.Frame - start + 1
		if newDur < 1 {
			err = reject(FieldRetimeEndFrame, fmt.Sprint(e.Frame), "retime end precedes start frame")
			newEnd = offsetEnd()
			out.RetimeEndFrame = nil
			break
		}
		speed := retimeSpeed(orgDur-first-last, newDur)
		end := e.Frame
		out.RetimeEndFrame = &end
		out.RetimeSpeed = &speed
		newEnd = float64(e.Frame)

	case RetimeTimecodeEdit:
		clearRetime(&out)
		var fallback bool
		newEnd, fallback, err = retimeFromTimecode(ctx, &out, row, e.Timecode, orgDur-first-last, settings)
		if fallback {
			newEnd = offsetEnd()
		}

	case RetimeSpeedEdit:
		out.RetimeEndFrame = nil
		out.RetimeTimecodeOut = nil
		if e.Speed <= 0 {
			err = reject(FieldRetimeSpeed, fmt.Sprint(e.Speed), "speed must be positive")
			out.RetimeSpeed = nil
			newEnd = offsetEnd()
			break
		}
		v := e.Speed
		newEnd = (float64(orgDur-first-last) + v*float64(start) - v) / v
		speed := v
		retimeEnd := int(math.Ceil(newEnd))
		out.RetimeSpeed = &speed
		out.RetimeEndFrame = &retimeEnd

	default:
		return row, fmt.Errorf("reconcile: unsupported edit %T", edit)
	}

	finish(&out, start, newEnd)
	return out, err
}

// retimeFromTimecode resolves the source start timecode and derives the
// retime speed and end frame. A failed lookup leaves the working range alone;
// fallback asks the caller to use the offset-derived end instead.
func retimeFromTimecode(ctx context.Context, out *rows.Row, row rows.Row, target frames.Timecode, usable int, settings Settings) (newEnd float64, fallback bool, err error) {
	if settings.Timecodes == nil {
		return float64(row.EndFrame), false, services.Wrap(services.ErrRemoteLookup, "reconcile", "source timecode", "no timecode source configured", nil)
	}
	source, err := settings.Timecodes.SourceStart(ctx, row)
	if err != nil {
		return float64(row.EndFrame), false, services.Wrap(services.ErrRemoteLookup, "reconcile", "source timecode", row.ScanName, err)
	}
	newDur := target.Frames(settings.FPS) - source.Frames(settings.FPS) + 1
	if newDur < 1 {
		return 0, true, services.Wrap(services.ErrInvalidRetime, "reconcile", "retime timecode",
			fmt.Sprintf("%s is before source start %s", target, source), nil)
	}
	tc := target
	speed := retimeSpeed(usable, newDur)
	end := row.StartFrame + newDur - 1
	out.RetimeTimecodeOut = &tc
	out.RetimeSpeed = &speed
	out.RetimeEndFrame = &end
	return float64(end), false, nil
}

func finish(out *rows.Row, start int, newEnd float64) {
	end := int(math.Ceil(newEnd))
	out.StartFrame = start
	out.EndFrame = end
	out.Duration = end - start + 1
}

func shiftRetimeEnd(out *rows.Row, end int) {
	if out.RetimeEndFrame != nil {
		out.RetimeEndFrame = &end
	}
}

func clearRetime(out *rows.Row) {
	out.RetimeEndFrame = nil
	out.RetimeTimecodeOut = nil
	out.RetimeSpeed = nil
}

func retimeSpeed(frameCount, newDuration int) float64 {
	return round3(float64(frameCount) / float64(newDuration))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// IsRejected reports whether err is a field-local rejection.
func IsRejected(err error) bool {
	var rejected *RejectedEdit
	return errors.As(err, &rejected)
}
