package framemeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"iomanager/internal/frames"
)

func encodeSMPTE(tc frames.Timecode) uint32 {
	pack := func(value int, shift uint) uint32 {
		return uint32(value%10)<<shift | uint32(value/10)<<(shift+4)
	}
	packed := pack(tc.Frame, 0) | pack(tc.Seconds, 8) | pack(tc.Minutes, 16) | pack(tc.Hours, 24)
	if tc.DropFrame {
		packed |= 1 << 6
	}
	return packed
}

func exrAttr(buf *bytes.Buffer, name, typeName string, value []byte) {
	buf.WriteString(name)
	buf.WriteByte(0)
	buf.WriteString(typeName)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.LittleEndian, int32(len(value)))
	buf.Write(value)
}

func writeEXR(t *testing.T, path string, tc *frames.Timecode) {
	t.Helper()
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, [2]uint32{exrMagic, 2})
	exrAttr(&buf, "channels", "chlist", []byte{'R', 0, 0})
	box := make([]byte, 16)
	binary.LittleEndian.PutUint32(box[8:], 4095)
	binary.LittleEndian.PutUint32(box[12:], 2159)
	exrAttr(&buf, "dataWindow", "box2i", box)
	exrAttr(&buf, "interim.clip.cameraClipName", "string", []byte("A001C003_230101_R1AB.mxf"))
	if tc != nil {
		value := make([]byte, 8)
		binary.LittleEndian.PutUint32(value, encodeSMPTE(*tc))
		exrAttr(&buf, "timeCode", "timecode", value)
	}
	buf.WriteByte(0)
	buf.Write([]byte{1, 2, 3, 4})
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write exr: %v", err)
	}
}

func TestReadEXRHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plate.1001.exr")
	want := frames.MustTimecode("14:23:51:17")
	writeEXR(t, path, &want)

	header, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if !header.HasTimecode || header.Timecode != want {
		t.Fatalf("timecode = %v, want %v", header.Timecode, want)
	}
	if header.Resolution() != "4096*2160" {
		t.Fatalf("resolution = %q", header.Resolution())
	}
	if len(header.ClipNames) != 1 || header.ClipNames[0] != "A001C003_230101_R1AB" {
		t.Fatalf("clip names = %v", header.ClipNames)
	}
}

func TestReadEXRWithoutTimecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plate.1001.exr")
	writeEXR(t, path, nil)
	if _, err := ReadTimecode(path); !errors.Is(err, ErrNoTimecode) {
		t.Fatalf("expected ErrNoTimecode, got %v", err)
	}
}

func TestReadDPXTimecode(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		buf := make([]byte, dpxHeaderSize+64)
		order.PutUint32(buf[0:], dpxMagicBig)
		order.PutUint32(buf[dpxWidthOffset:], 2048)
		order.PutUint32(buf[dpxHeightOffset:], 1556)
		order.PutUint32(buf[dpxTimecodeOffset:], 0x01021516)
		path := filepath.Join(t.TempDir(), "scan.0101.dpx")
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			t.Fatalf("write dpx: %v", err)
		}

		tc, err := ReadTimecode(path)
		if err != nil {
			t.Fatalf("ReadTimecode (%v): %v", order, err)
		}
		if tc.String() != "01:02:15:16" {
			t.Fatalf("timecode (%v) = %s", order, tc)
		}
		header, _ := ReadHeader(path)
		if header.Resolution() != "2048*1556" {
			t.Fatalf("resolution (%v) = %q", order, header.Resolution())
		}
	}
}

func TestReadDPXUndefinedTimecode(t *testing.T) {
	buf := make([]byte, dpxHeaderSize)
	binary.BigEndian.PutUint32(buf[0:], dpxMagicBig)
	binary.BigEndian.PutUint32(buf[dpxTimecodeOffset:], dpxUndefined)
	path := filepath.Join(t.TempDir(), "scan.dpx")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write dpx: %v", err)
	}
	if _, err := ReadTimecode(path); !errors.Is(err, ErrNoTimecode) {
		t.Fatalf("expected ErrNoTimecode, got %v", err)
	}
}

func TestReadHeaderRejectsUnknownFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(path, []byte{0xff, 0xd8}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadHeader(path); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
