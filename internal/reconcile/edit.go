package reconcile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"iomanager/internal/frames"
	"iomanager/internal/services"
)

// Field names an editable working-timing field.
type Field string

const (
	FieldStartFrame        Field = "start_frame"
	FieldFrameHandle       Field = "frame_handle"
	FieldFirstFrameOffset  Field = "first_frame_offset"
	FieldEndFrameOffset    Field = "end_frame_offset"
	FieldRetimeEndFrame    Field = "retime_end_frame"
	FieldRetimeTimecodeOut Field = "retime_timecode_out"
	FieldRetimeSpeed       Field = "retime_speed"
)

// Fields lists every editable field in display order.
var Fields = []Field{
	FieldStartFrame,
	FieldFrameHandle,
	FieldFirstFrameOffset,
	FieldEndFrameOffset,
	FieldRetimeEndFrame,
	FieldRetimeTimecodeOut,
	FieldRetimeSpeed,
}

// Edit is one field change. The concrete types below are the only
// implementations.
type Edit interface {
	Field() Field
	fmt.Stringer
	edit()
}

type (
	StartFrameEdit     struct{ Frame int }
	FrameHandleEdit    struct{ Handle int }
	FirstOffsetEdit    struct{ Offset int }
	EndOffsetEdit      struct{ Offset int }
	RetimeEndEdit      struct{ Frame int }
	RetimeTimecodeEdit struct{ Timecode frames.Timecode }
	RetimeSpeedEdit    struct{ Speed float64 }
)

func StartFrame(frame int) Edit              { return StartFrameEdit{Frame: frame} }
func FrameHandle(handle int) Edit            { return FrameHandleEdit{Handle: handle} }
func FirstOffset(offset int) Edit            { return FirstOffsetEdit{Offset: offset} }
func EndOffset(offset int) Edit              { return EndOffsetEdit{Offset: offset} }
func RetimeEnd(frame int) Edit               { return RetimeEndEdit{Frame: frame} }
func RetimeTimecode(tc frames.Timecode) Edit { return RetimeTimecodeEdit{Timecode: tc} }
func RetimeSpeed(speed float64) Edit         { return RetimeSpeedEdit{Speed: speed} }

func (StartFrameEdit) Field() Field     { return FieldStartFrame }
func (FrameHandleEdit) Field() Field    { return FieldFrameHandle }
func (FirstOffsetEdit) Field() Field    { return FieldFirstFrameOffset }
func (EndOffsetEdit) Field() Field      { return FieldEndFrameOffset }
func (RetimeEndEdit) Field() Field      { return FieldRetimeEndFrame }
func (RetimeTimecodeEdit) Field() Field { return FieldRetimeTimecodeOut }
func (RetimeSpeedEdit) Field() Field    { return FieldRetimeSpeed }

func (e StartFrameEdit) String() string     { return fmt.Sprintf("%s=%d", e.Field(), e.Frame) }
func (e FrameHandleEdit) String() string    { return fmt.Sprintf("%s=%d", e.Field(), e.Handle) }
func (e FirstOffsetEdit) String() string    { return fmt.Sprintf("%s=%d", e.Field(), e.Offset) }
func (e EndOffsetEdit) String() string      { return fmt.Sprintf("%s=%d", e.Field(), e.Offset) }
func (e RetimeEndEdit) String() string      { return fmt.Sprintf("%s=%d", e.Field(), e.Frame) }
func (e RetimeTimecodeEdit) String() string { return fmt.Sprintf("%s=%s", e.Field(), e.Timecode) }
func (e RetimeSpeedEdit) String() string    { return fmt.Sprintf("%s=%g", e.Field(), e.Speed) }

func (StartFrameEdit) edit()     {}
func (FrameHandleEdit) edit()    {}
func (FirstOffsetEdit) edit()    {}
func (EndOffsetEdit) edit()      {}
func (RetimeEndEdit) edit()      {}
func (RetimeTimecodeEdit) edit() {}
func (RetimeSpeedEdit) edit()    {}

// RejectedEdit reports input that could not be applied. The edited field is
// cleared; the rest of the row is kept.
type RejectedEdit struct {
	Field  Field
	Value  string
	Reason string
}

func (e *RejectedEdit) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s rejected: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q rejected: %s", e.Field, e.Value, e.Reason)
}

// Unwrap classifies rejected edits as validation failures.
func (e *RejectedEdit) Unwrap() error {
	return services.ErrValidation
}

func reject(field Field, value, reason string) *RejectedEdit {
	return &RejectedEdit{Field: field, Value: value, Reason: reason}
}

// ParseField resolves a field name; dashes and spaces are accepted in place
// of underscores.
func ParseField(name string) (Field, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	for _, field := range Fields {
		if string(field) == normalized {
			return field, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", name)
}

// ParseEdit turns operator input for field into an Edit. Frame fields accept
// decimals and truncate them; the timecode field requires HH:MM:SS:FF.
func ParseEdit(field Field, text string) (Edit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, reject(field, text, "empty value")
	}
	if field == FieldRetimeTimecodeOut {
		tc, err := frames.ParseTimecode(text)
		if err != nil || tc.DropFrame {
			return nil, reject(field, text, "want HH:MM:SS:FF")
		}
		return RetimeTimecode(tc), nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, reject(field, text, "not a number")
	}
	if field != FieldRetimeSpeed && math.Abs(value) > math.MaxInt32 {
		return nil, reject(field, text, "out of range")
	}
	whole := int(value)
	switch field {
	case FieldStartFrame:
		return StartFrame(whole), nil
	case FieldFrameHandle:
		return FrameHandle(whole), nil
	case FieldFirstFrameOffset:
		return FirstOffset(whole), nil
	case FieldEndFrameOffset:
		return EndOffset(whole), nil
	case FieldRetimeEndFrame:
		return RetimeEnd(whole), nil
	case FieldRetimeSpeed:
		return RetimeSpeed(value), nil
	default:
		return nil, reject(field, text, "field is not editable")
	}
}
