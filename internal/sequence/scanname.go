package sequence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var scanNamePattern = regexp.MustCompile(`^([A-Z0-9_]+)_(mp\d|sp\d|rp\d)_(v\d{3})`)

// ScanName holds the identity fields encoded in a scan name.
type ScanName struct {
	Sequence string
	Shot     string
	Tag      string
	Version  int
}

// VersionLabel returns the zero-padded version, e.g. "v001".
func (s ScanName) VersionLabel() string {
	return fmt.Sprintf("v%03d", s.Version)
}

// ParseScanName parses names like "A01_001_mp0_v001". The sequence code is
// the shot code up to its first underscore.
func ParseScanName(name string) (ScanName, bool) {
	m := scanNamePattern.FindStringSubmatch(name)
	if m == nil {
		return ScanName{}, false
	}
	version, err := strconv.Atoi(strings.TrimPrefix(m[3], "v"))
	if err != nil {
		return ScanName{}, false
	}
	seq, _, _ := strings.Cut(m[1], "_")
	return ScanName{Sequence: seq, Shot: m[1], Tag: m[2], Version: version}, true
}

var editNamePattern = regexp.MustCompile(`^([A-Z0-9_]+?)_(?:[a-z]+\d?_)?(v\d{3})`)

// ParseEditName parses editorial movie names such as "A01_001_edit_v002"
// or "A01_001_v002". Plate-style names are accepted as well.
func ParseEditName(name string) (ScanName, bool) {
	if parsed, ok := ParseScanName(name); ok {
		return parsed, true
	}
	m := editNamePattern.FindStringSubmatch(name)
	if m == nil {
		return ScanName{}, false
	}
	version, err := strconv.Atoi(strings.TrimPrefix(m[2], "v"))
	if err != nil {
		return ScanName{}, false
	}
	seq, _, _ := strings.Cut(m[1], "_")
	return ScanName{Sequence: seq, Shot: m[1], Version: version}, true
}
