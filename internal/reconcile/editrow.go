package reconcile

import (
	"fmt"
	"strings"

	"iomanager/internal/rows"
	"iomanager/internal/services"
)

// ConflictError reports an edit that combined a frame handle with offsets.
// The fields in Reset were zeroed and the row recomputed without the edit.
type ConflictError struct {
	Field Field
	Reset []Field
}

func (e *ConflictError) Error() string {
	names := make([]string, len(e.Reset))
	for i, f := range e.Reset {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s conflicts with %s; %s reset to 0", e.Field, strings.Join(names, ", "), strings.Join(names, ", "))
}

// Unwrap classifies conflicts as validation failures.
func (e *ConflictError) Unwrap() error {
	return services.ErrValidation
}

// EditRow applies edit to an editorial row. Only the frame handle and the
// two offsets are editable; the working range is recomputed from OrgRange on
// every call. A handle widens the range on both sides:
// start = configuredStart - h, end = start + orgDuration - 1 + 2h. Offsets
// move each end independently: start = org.Start + first, end = org.End + last.
func EditRow(row rows.Row, edit Edit, configuredStart int) (rows.Row, error) {
	out := row.Clone()
	handle := row.FrameHandle
	first := row.FirstFrameOffset
	last := row.EndFrameOffset

	switch e := edit.(type) {
	case FrameHandleEdit:
		if e.Handle > 0 && (first > 0 || last > 0) {
			out.FirstFrameOffset = 0
			out.EndFrameOffset = 0
			applyEditRange(&out, handle, 0, 0, configuredStart)
			return out, &ConflictError{Field: FieldFrameHandle, Reset: []Field{FieldFirstFrameOffset, FieldEndFrameOffset}}
		}
		handle = e.Handle
	case FirstOffsetEdit:
		if e.Offset > 0 && handle > 0 {
			out.FrameHandle = 0
			applyEditRange(&out, 0, first, last, configuredStart)
			return out, &ConflictError{Field: FieldFirstFrameOffset, Reset: []Field{FieldFrameHandle}}
		}
		first = e.Offset
	case EndOffsetEdit:
		if e.Offset > 0 && handle > 0 {
			out.FrameHandle = 0
			applyEditRange(&out, 0, first, last, configuredStart)
			return out, &ConflictError{Field: FieldEndFrameOffset, Reset: []Field{FieldFrameHandle}}
		}
		last = e.Offset
	default:
		if edit == nil {
			return row, reject("", "", "no edit")
		}
		return row, reject(edit.Field(), "", "not editable on edit rows")
	}

	start, end := editRange(row, handle, first, last, configuredStart)
	if start > end {
		field := edit.Field()
		switch field {
		case FieldFrameHandle:
			handle = 0
		case FieldFirstFrameOffset:
			first = 0
		case FieldEndFrameOffset:
			last = 0
		}
		applyEditRange(&out, handle, first, last, configuredStart)
		return out, reject(field, strings.TrimPrefix(edit.String(), string(field)+"="), "start frame would follow end frame")
	}
	applyEditRange(&out, handle, first, last, configuredStart)
	return out, nil
}

func editRange(row rows.Row, handle, first, last, configuredStart int) (int, int) {
	org := row.OrgRange
	if handle != 0 {
		start := configuredStart - handle
		return start, start + org.Duration() - 1 + 2*handle
	}
	return org.Start + first, org.End + last
}

func applyEditRange(out *rows.Row, handle, first, last, configuredStart int) {
	start, end := editRange(*out, handle, first, last, configuredStart)
	out.FrameHandle = handle
	out.FirstFrameOffset = first
	out.EndFrameOffset = last
	out.StartFrame = start
	out.EndFrame = end
	out.Duration = end - start + 1
}
