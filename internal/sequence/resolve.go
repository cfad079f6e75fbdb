package sequence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"iomanager/internal/frames"
	"iomanager/internal/services"
)

// DefaultExtensions lists the image extensions treated as sequence frames.
var DefaultExtensions = []string{".jpg", ".exr", ".dpx", ".png"}

var framePattern = regexp.MustCompile(`^(.+?)(\d+)(\.\w+)$`)

// ErrNoSequence reports a directory without any numbered frame files.
var ErrNoSequence = errors.New("no image sequence found")

// MixedError reports frame files that do not share the first file's name
// prefix and extension.
type MixedError struct {
	Dir    string
	Prefix string
	Ext    string
	Others []string
}

func (e *MixedError) Error() string {
	return fmt.Sprintf("mixed sequences in %s: expected %s####%s, also found %s",
		e.Dir, e.Prefix, e.Ext, strings.Join(e.Others, ", "))
}

// Unwrap classifies mixed directories as validation failures.
func (e *MixedError) Unwrap() error {
	return services.ErrValidation
}

// GapError reports a non-contiguous sequence. Missing lists absent frame
// numbers and Duplicate lists frame numbers claimed by more than one file.
type GapError struct {
	Dir       string
	Missing   []int
	Duplicate []int
}

func (e *GapError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "missing frames in %s", e.Dir)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": %s", compactFrames(e.Missing))
	}
	if len(e.Duplicate) > 0 {
		fmt.Fprintf(&b, " (duplicate frames: %s)", compactFrames(e.Duplicate))
	}
	return b.String()
}

// Unwrap classifies gap errors for errors.Is checks.
func (e *GapError) Unwrap() error {
	return services.ErrSequenceGap
}

// Info describes a resolved image sequence.
type Info struct {
	Dir    string
	Start  int
	End    int
	Prefix string
	Ext    string
	Digits int
	Paths  map[int]string
}

// Range returns the inclusive frame span.
func (i Info) Range() frames.Range {
	return frames.Range{Start: i.Start, End: i.End}
}

// Path returns the file holding frame.
func (i Info) Path(frame int) (string, bool) {
	p, ok := i.Paths[frame]
	return p, ok
}

// FirstPath returns the file of the first frame.
func (i Info) FirstPath() string {
	return i.Paths[i.Start]
}

// Pattern returns the printf-style path of the sequence, e.g. /scan/A.%04d.exr.
func (i Info) Pattern() string {
	return filepath.Join(i.Dir, fmt.Sprintf("%s%%0%dd%s", i.Prefix, i.Digits, i.Ext))
}

// Resolve inspects dir for a numbered frame sequence using exts (or
// DefaultExtensions when empty). Files that do not carry a frame number are
// ignored. Every frame file must share the prefix and extension of the
// first one in name order; otherwise a *MixedError is returned.
func Resolve(dir string, exts []string) (Info, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Info{}, fmt.Errorf("read sequence dir: %w", err)
	}

	info := Info{Dir: dir, Paths: make(map[int]string)}
	var numbers []int
	var others []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !hasExtension(name, exts) {
			continue
		}
		m := framePattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		frame, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if len(numbers) == 0 {
			info.Prefix, info.Ext, info.Digits = m[1], m[3], len(m[2])
		} else if m[1] != info.Prefix || m[3] != info.Ext {
			others = append(others, name)
			continue
		}
		numbers = append(numbers, frame)
		info.Paths[frame] = filepath.Join(dir, name)
	}
	if len(numbers) == 0 {
		return Info{}, fmt.Errorf("%s: %w", dir, ErrNoSequence)
	}
	if len(others) > 0 {
		return Info{}, &MixedError{Dir: dir, Prefix: info.Prefix, Ext: info.Ext, Others: others}
	}

	slices.Sort(numbers)
	info.Start, info.End = numbers[0], numbers[len(numbers)-1]
	if len(numbers) == 1 {
		return info, nil
	}

	gap := &GapError{Dir: dir}
	for idx := 1; idx < len(numbers); idx++ {
		prev, cur := numbers[idx-1], numbers[idx]
		switch {
		case cur == prev:
			gap.Duplicate = append(gap.Duplicate, cur)
		case cur != prev+1:
			for missing := prev + 1; missing < cur; missing++ {
				gap.Missing = append(gap.Missing, missing)
			}
		}
	}
	if len(gap.Missing) > 0 || len(gap.Duplicate) > 0 {
		return Info{}, gap
	}
	return info, nil
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// compactFrames renders sorted frame numbers as runs, e.g. "1003, 1007-1009".
func compactFrames(values []int) string {
	parts := make([]string, 0, len(values))
	for i := 0; i < len(values); {
		j := i
		for j+1 < len(values) && values[j+1] == values[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, strconv.Itoa(values[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", values[i], values[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}
