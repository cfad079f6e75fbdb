package frames

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// timecodePattern also accepts the drop-frame ";" separator that probed
// media and stored manifests carry. Values typed by a user are checked for
// the plain HH:MM:SS:FF form by the caller.
var timecodePattern = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})([:;])(\d{2})$`)

// Timecode is an SMPTE HH:MM:SS:FF value. DropFrame is set when the frame
// field was separated by a semicolon.
type Timecode struct {
	Hours     int
	Minutes   int
	Seconds   int
	Frame     int
	DropFrame bool
}

// ParseTimecode parses "HH:MM:SS:FF" (or "HH:MM:SS;FF" for drop frame).
func ParseTimecode(value string) (Timecode, error) {
	m := timecodePattern.FindStringSubmatch(value)
	if m == nil {
		return Timecode{}, fmt.Errorf("parse timecode %q: want HH:MM:SS:FF", value)
	}
	tc := Timecode{DropFrame: m[4] == ";"}
	tc.Hours, _ = strconv.Atoi(m[1])
	tc.Minutes, _ = strconv.Atoi(m[2])
	tc.Seconds, _ = strconv.Atoi(m[3])
	tc.Frame, _ = strconv.Atoi(m[5])
	if tc.Minutes > 59 || tc.Seconds > 59 {
		return Timecode{}, fmt.Errorf("parse timecode %q: field out of range", value)
	}
	return tc, nil
}

// MustTimecode is ParseTimecode for literals known to be valid.
func MustTimecode(value string) Timecode {
	tc, err := ParseTimecode(value)
	if err != nil {
		panic(err)
	}
	return tc
}

func (tc Timecode) String() string {
	sep := ":"
	if tc.DropFrame {
		sep = ";"
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%02d", tc.Hours, tc.Minutes, tc.Seconds, sep, tc.Frame)
}

// IsZero reports whether the timecode is unset.
func (tc Timecode) IsZero() bool {
	return tc == Timecode{}
}

// Frames returns the zero-based frame count of tc at fps. Fractional rates
// count at the nominal integer rate; drop-frame timecodes skip the first two
// (four at 59.94) frame numbers of every minute not divisible by ten.
func (tc Timecode) Frames(fps float64) int {
	nominal := nominalRate(fps)
	total := ((tc.Hours*60+tc.Minutes)*60+tc.Seconds)*nominal + tc.Frame
	if tc.DropFrame {
		drop := nominal / 15
		minutes := tc.Hours*60 + tc.Minutes
		total -= drop * (minutes - minutes/10)
	}
	return total
}

// TimecodeFromFrames converts a zero-based non-drop frame count at fps.
func TimecodeFromFrames(frames int, fps float64) Timecode {
	nominal := nominalRate(fps)
	if frames < 0 {
		frames = 0
	}
	return Timecode{
		Hours:   frames / (3600 * nominal),
		Minutes: frames / (60 * nominal) % 60,
		Seconds: frames / nominal % 60,
		Frame:   frames % nominal,
	}
}

func nominalRate(fps float64) int {
	rate := int(math.Round(fps))
	if rate < 1 {
		return 1
	}
	return rate
}

// MarshalText encodes the timecode as HH:MM:SS:FF.
func (tc Timecode) MarshalText() ([]byte, error) {
	return []byte(tc.String()), nil
}

// UnmarshalText parses HH:MM:SS:FF.
func (tc *Timecode) UnmarshalText(text []byte) error {
	parsed, err := ParseTimecode(string(text))
	if err != nil {
		return err
	}
	*tc = parsed
	return nil
}
