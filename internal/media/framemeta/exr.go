package framemeta

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

const (
	exrMagic         = 20000630
	exrMaxAttrSize   = 16 << 20
	exrMaxNameLength = 255
)

var exrClipNameAttrs = []string{"interim.clip.cameraClipName", "uk.ltd.filmlight.Clip"}

func readEXR(filename string) (Header, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Header{}, fmt.Errorf("open exr: %w", err)
	}
	defer f.Close()
	header, err := decodeEXR(bufio.NewReader(f))
	if err != nil {
		return Header{}, fmt.Errorf("%s: %w", filename, err)
	}
	return header, nil
}

func decodeEXR(r *bufio.Reader) (Header, error) {
	var preamble [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &preamble); err != nil {
		return Header{}, fmt.Errorf("read exr preamble: %w", err)
	}
	if preamble[0] != exrMagic {
		return Header{}, errors.New("not an OpenEXR file")
	}

	var header Header
	for {
		name, err := readCString(r)
		if err != nil {
			return Header{}, fmt.Errorf("read attribute name: %w", err)
		}
		if name == "" {
			return header, nil
		}
		typeName, err := readCString(r)
		if err != nil {
			return Header{}, fmt.Errorf("read attribute type for %s: %w", name, err)
		}
		var size int32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return Header{}, fmt.Errorf("read attribute size for %s: %w", name, err)
		}
		if size < 0 || size > exrMaxAttrSize {
			return Header{}, fmt.Errorf("attribute %s: invalid size %d", name, size)
		}
		value := make([]byte, size)
		if _, err := io.ReadFull(r, value); err != nil {
			return Header{}, fmt.Errorf("read attribute %s: %w", name, err)
		}

		switch {
		case name == "timeCode" && typeName == "timecode" && len(value) >= 4:
			header.Timecode = decodeSMPTE(binary.LittleEndian.Uint32(value))
			header.HasTimecode = true
		case name == "dataWindow" && typeName == "box2i" && len(value) == 16:
			xMin := int32(binary.LittleEndian.Uint32(value[0:]))
			yMin := int32(binary.LittleEndian.Uint32(value[4:]))
			xMax := int32(binary.LittleEndian.Uint32(value[8:]))
			yMax := int32(binary.LittleEndian.Uint32(value[12:]))
			header.Width = int(xMax - xMin + 1)
			header.Height = int(yMax - yMin + 1)
		case typeName == "string" && isClipNameAttr(name):
			clip := strings.TrimRight(string(value), "\x00")
			clip = strings.TrimSuffix(clip, path.Ext(clip))
			if clip != "" {
				header.ClipNames = append(header.ClipNames, clip)
			}
		}
	}
}

func isClipNameAttr(name string) bool {
	for _, candidate := range exrClipNameAttrs {
		if name == candidate {
			return true
		}
	}
	return false
}

func readCString(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		c, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if c == 0 {
			return b.String(), nil
		}
		if b.Len() >= exrMaxNameLength {
			return "", errors.New("attribute name too long")
		}
		b.WriteByte(c)
	}
}
