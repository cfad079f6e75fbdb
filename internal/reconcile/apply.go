package reconcile

import (
	"context"

	"iomanager/internal/rows"
)

// ApplyText parses operator input for field and applies it to row with the
// rules for the row's plate type. Unparseable input clears the field and
// returns a *RejectedEdit alongside the otherwise unchanged row.
func ApplyText(ctx context.Context, row rows.Row, field Field, text string, settings Settings) (rows.Row, error) {
	edit, err := ParseEdit(field, text)
	if err != nil {
		return ClearField(row, field), err
	}
	return Apply(ctx, row, edit, settings)
}

// Apply dispatches edit to EditRow for editorial rows and Plate otherwise.
func Apply(ctx context.Context, row rows.Row, edit Edit, settings Settings) (rows.Row, error) {
	if row.IsEdit() {
		return EditRow(row, edit, settings.ConfiguredStart)
	}
	return Plate(ctx, row, edit, settings)
}

// ClearField blanks one editable field without recomputing anything else.
// The start frame cannot be blank and is left as is.
func ClearField(row rows.Row, field Field) rows.Row {
	out := row.Clone()
	switch field {
	case FieldFrameHandle:
		out.FrameHandle = 0
	case FieldFirstFrameOffset:
		out.FirstFrameOffset = 0
	case FieldEndFrameOffset:
		out.EndFrameOffset = 0
	case FieldRetimeEndFrame:
		out.RetimeEndFrame = nil
	case FieldRetimeTimecodeOut:
		out.RetimeTimecodeOut = nil
	case FieldRetimeSpeed:
		out.RetimeSpeed = nil
	}
	return out
}
