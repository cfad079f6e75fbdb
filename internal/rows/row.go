package rows

import (
	"errors"
	"fmt"
	"strings"

	"iomanager/internal/frames"
	"iomanager/internal/services"
)

// PlateType classifies a scan unit.
type PlateType string

const (
	MainPlate      PlateType = "main-plate"
	SubPlate       PlateType = "sub-plate"
	ReferencePlate PlateType = "reference-plate"
	EditPlate      PlateType = "edit"
)

// PlateTypeFromTag maps a scan-name tag (mp0, sp1, rp0) to its plate type.
func PlateTypeFromTag(tag string) PlateType {
	switch {
	case strings.HasPrefix(tag, "mp"):
		return MainPlate
	case strings.HasPrefix(tag, "sp"):
		return SubPlate
	case strings.HasPrefix(tag, "rp"):
		return ReferencePlate
	default:
		return ""
	}
}

// Kind distinguishes image-sequence scans from movie files.
type Kind string

const (
	KindSequence Kind = "sequence"
	KindMovie    Kind = "movie"
)

// Row is one scan unit being prepared for the farm. Working timing fields
// satisfy EndFrame == StartFrame + Duration - 1 at rest.
type Row struct {
	ScanName   string    `json:"scan_name" yaml:"scan_name"`
	Sequence   string    `json:"sequence" yaml:"sequence"`
	Shot       string    `json:"shot" yaml:"shot"`
	PlateType  PlateType `json:"plate_type" yaml:"plate_type"`
	Tag        string    `json:"tag,omitempty" yaml:"tag,omitempty"`
	Version    int       `json:"version" yaml:"version"`
	Kind       Kind      `json:"kind" yaml:"kind"`
	SourcePath string    `json:"source_path" yaml:"source_path"`

	OrgRange          frames.Range     `json:"org_range" yaml:"org_range"`
	SourceTimecodeIn  *frames.Timecode `json:"source_timecode_in,omitempty" yaml:"source_timecode_in,omitempty"`
	SourceTimecodeOut *frames.Timecode `json:"source_timecode_out,omitempty" yaml:"source_timecode_out,omitempty"`

	StartFrame        int              `json:"start_frame" yaml:"start_frame"`
	EndFrame          int              `json:"end_frame" yaml:"end_frame"`
	Duration          int              `json:"duration" yaml:"duration"`
	FrameHandle       int              `json:"frame_handle" yaml:"frame_handle"`
	FirstFrameOffset  int              `json:"first_frame_offset" yaml:"first_frame_offset"`
	EndFrameOffset    int              `json:"end_frame_offset" yaml:"end_frame_offset"`
	RetimeEndFrame    *int             `json:"retime_end_frame,omitempty" yaml:"retime_end_frame,omitempty"`
	RetimeTimecodeOut *frames.Timecode `json:"retime_timecode_out,omitempty" yaml:"retime_timecode_out,omitempty"`
	RetimeSpeed       *float64         `json:"retime_speed,omitempty" yaml:"retime_speed,omitempty"`

	Confirmed bool `json:"confirmed" yaml:"confirmed"`

	ClipName    string `json:"clip_name,omitempty" yaml:"clip_name,omitempty"`
	Resolution  string `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Cube        string `json:"cube,omitempty" yaml:"cube,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	EditDate    string `json:"edit_date,omitempty" yaml:"edit_date,omitempty"`
	Episode     string `json:"episode,omitempty" yaml:"episode,omitempty"`
}

// WorkingRange returns [StartFrame, EndFrame].
func (r Row) WorkingRange() frames.Range {
	return frames.Range{Start: r.StartFrame, End: r.EndFrame}
}

// IsEdit reports whether the row is an editorial movie.
func (r Row) IsEdit() bool {
	return r.PlateType == EditPlate
}

// IsRetimed reports whether any retime field is set.
func (r Row) IsRetimed() bool {
	return r.RetimeEndFrame != nil || r.RetimeTimecodeOut != nil || r.RetimeSpeed != nil
}

// TypeLabel returns the tag used in published names: the plate tag, or
// "edit" for editorial rows.
func (r Row) TypeLabel() string {
	if r.Tag != "" {
		return r.Tag
	}
	if r.IsEdit() {
		return "edit"
	}
	return string(r.PlateType)
}

// ConnectName is the published plate name, e.g. "A01_001_mp0_v001".
func (r Row) ConnectName() string {
	return fmt.Sprintf("%s_%s_v%03d", r.Shot, r.TypeLabel(), r.Version)
}

// Clone returns a deep copy of r.
func (r Row) Clone() Row {
	out := r
	if r.SourceTimecodeIn != nil {
		tc := *r.SourceTimecodeIn
		out.SourceTimecodeIn = &tc
	}
	if r.SourceTimecodeOut != nil {
		tc := *r.SourceTimecodeOut
		out.SourceTimecodeOut = &tc
	}
	if r.RetimeEndFrame != nil {
		v := *r.RetimeEndFrame
		out.RetimeEndFrame = &v
	}
	if r.RetimeTimecodeOut != nil {
		tc := *r.RetimeTimecodeOut
		out.RetimeTimecodeOut = &tc
	}
	if r.RetimeSpeed != nil {
		v := *r.RetimeSpeed
		out.RetimeSpeed = &v
	}
	return out
}

// CheckInvariant reports a row whose working range and duration disagree.
func (r Row) CheckInvariant() error {
	if r.EndFrame != r.StartFrame+r.Duration-1 {
		return fmt.Errorf("row %s: end frame %d != start %d + duration %d - 1", r.ScanName, r.EndFrame, r.StartFrame, r.Duration)
	}
	return nil
}

// Validate checks the identity and timing fields required before a row's
// job graph is built. Failures are tagged services.ErrValidation.
func (r Row) Validate() error {
	var problems []string
	if strings.TrimSpace(r.ScanName) == "" {
		problems = append(problems, "scan name missing")
	}
	if strings.TrimSpace(r.Sequence) == "" {
		problems = append(problems, "sequence missing")
	}
	if strings.TrimSpace(r.Shot) == "" {
		problems = append(problems, "shot missing")
	}
	if r.Version < 1 {
		problems = append(problems, "version missing")
	}
	if r.PlateType == "" {
		problems = append(problems, "plate type missing")
	}
	if r.Duration < 1 {
		problems = append(problems, "duration missing")
	}
	if r.StartFrame > r.EndFrame {
		problems = append(problems, fmt.Sprintf("start frame %d after end frame %d", r.StartFrame, r.EndFrame))
	} else if err := r.CheckInvariant(); err != nil {
		problems = append(problems, err.Error())
	}
	if r.IsEdit() {
		if strings.TrimSpace(r.EditDate) == "" {
			problems = append(problems, "edit date missing")
		}
		if r.OrgRange.IsZero() || !r.OrgRange.Valid() {
			problems = append(problems, "org range missing")
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "rows", "validate", strings.Join(problems, "; "), nil)
}

// ErrNoRows reports a scan root without sequence folders or movie files.
var ErrNoRows = errors.New("no scan data found")
