package framemeta

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"iomanager/internal/frames"
)

const (
	dpxMagicBig       = 0x53445058 // "SDPX"
	dpxMagicLittle    = 0x58504453 // "XPDS"
	dpxWidthOffset    = 772
	dpxHeightOffset   = 776
	dpxTimecodeOffset = 1920
	dpxHeaderSize     = 1924
	dpxUndefined      = 0xFFFFFFFF
)

func readDPX(filename string) (Header, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Header{}, fmt.Errorf("open dpx: %w", err)
	}
	defer f.Close()

	buf := make([]byte, dpxHeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return Header{}, fmt.Errorf("%s: read dpx header: %w", filename, err)
	}
	header, err := decodeDPX(buf)
	if err != nil {
		return Header{}, fmt.Errorf("%s: %w", filename, err)
	}
	return header, nil
}

func decodeDPX(buf []byte) (Header, error) {
	if len(buf) < dpxHeaderSize {
		return Header{}, errors.New("short dpx header")
	}
	var order binary.ByteOrder
	switch binary.BigEndian.Uint32(buf[0:4]) {
	case dpxMagicBig:
		order = binary.BigEndian
	case dpxMagicLittle:
		order = binary.LittleEndian
	default:
		return Header{}, errors.New("not a DPX file")
	}

	var header Header
	if w := order.Uint32(buf[dpxWidthOffset:]); w != dpxUndefined {
		header.Width = int(w)
	}
	if h := order.Uint32(buf[dpxHeightOffset:]); h != dpxUndefined {
		header.Height = int(h)
	}
	if tc := order.Uint32(buf[dpxTimecodeOffset:]); tc != dpxUndefined {
		header.Timecode = decodeDPXTimecode(tc)
		header.HasTimecode = true
	}
	return header, nil
}

// decodeDPXTimecode unpacks the TV header word, stored as 0xHHMMSSFF BCD.
func decodeDPXTimecode(packed uint32) (tc frames.Timecode) {
	digits := func(shift uint) int {
		b := int(packed>>shift) & 0xFF
		return (b>>4)*10 + b&0xF
	}
	tc.Hours = digits(24)
	tc.Minutes = digits(16)
	tc.Seconds = digits(8)
	tc.Frame = digits(0)
	return tc
}
