package frames

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is an inclusive frame interval. A valid range has End >= Start.
type Range struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// NewRange returns the range [start, end] or an error when end precedes start.
func NewRange(start, end int) (Range, error) {
	if end < start {
		return Range{}, fmt.Errorf("invalid frame range %d-%d: end before start", start, end)
	}
	return Range{Start: start, End: end}, nil
}

// Duration returns the number of frames in the range.
func (r Range) Duration() int {
	return r.End - r.Start + 1
}

// Valid reports whether the range satisfies End >= Start.
func (r Range) Valid() bool {
	return r.End >= r.Start
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

// Frames renders the range in the farm's frame list syntax.
func (r Range) Frames() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d (%d)", r.Start, r.End, r.Duration())
}

// ParseRange accepts "start-end" with an optional trailing "(duration)" as
// produced by String.
func ParseRange(value string) (Range, error) {
	trimmed := strings.TrimSpace(value)
	if idx := strings.Index(trimmed, "("); idx >= 0 {
		trimmed = strings.TrimSpace(trimmed[:idx])
	}
	startText, endText, ok := strings.Cut(trimmed, "-")
	if !ok {
		return Range{}, fmt.Errorf("parse frame range %q: want start-end", value)
	}
	start, err := strconv.Atoi(strings.TrimSpace(startText))
	if err != nil {
		return Range{}, fmt.Errorf("parse frame range %q: %w", value, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(endText))
	if err != nil {
		return Range{}, fmt.Errorf("parse frame range %q: %w", value, err)
	}
	return NewRange(start, end)
}
