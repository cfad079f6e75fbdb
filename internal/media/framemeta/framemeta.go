package framemeta

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"iomanager/internal/frames"
)

// ErrNoTimecode reports a frame without an embedded timecode.
var ErrNoTimecode = errors.New("no embedded timecode")

// ErrUnsupported reports a frame format without a header reader.
var ErrUnsupported = errors.New("unsupported frame format")

// Header is the subset of frame metadata used for plate rows.
type Header struct {
	Timecode    frames.Timecode
	HasTimecode bool
	Width       int
	Height      int
	ClipNames   []string
}

// Resolution renders the frame size as "WIDTH*HEIGHT".
func (h Header) Resolution() string {
	if h.Width == 0 || h.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%d*%d", h.Width, h.Height)
}

// ReadHeader dispatches on the file extension.
func ReadHeader(path string) (Header, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exr":
		return readEXR(path)
	case ".dpx":
		return readDPX(path)
	default:
		return Header{}, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
}

// ReadTimecode returns the embedded timecode of a single frame.
func ReadTimecode(path string) (frames.Timecode, error) {
	header, err := ReadHeader(path)
	if err != nil {
		return frames.Timecode{}, err
	}
	if !header.HasTimecode {
		return frames.Timecode{}, fmt.Errorf("%s: %w", path, ErrNoTimecode)
	}
	return header.Timecode, nil
}

// decodeSMPTE unpacks a BCD time-and-flags word as stored by EXR and DPX.
func decodeSMPTE(packed uint32) frames.Timecode {
	bcd := func(shift, tensBits uint) int {
		units := int(packed>>shift) & 0xF
		tens := int(packed>>(shift+4)) & ((1 << tensBits) - 1)
		return tens*10 + units
	}
	return frames.Timecode{
		Frame:     bcd(0, 2),
		DropFrame: packed&(1<<6) != 0,
		Seconds:   bcd(8, 3),
		Minutes:   bcd(16, 3),
		Hours:     bcd(24, 2),
	}
}
