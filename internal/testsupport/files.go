package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteSequence creates one small file per frame named
// <prefix><frame padded to 4 digits><ext> inside dir and returns the paths in
// frame order.
func WriteSequence(t testing.TB, dir, prefix, ext string, frameNumbers ...int) []string {
	t.Helper()

	paths := make([]string, 0, len(frameNumbers))
	for _, frame := range frameNumbers {
		path := filepath.Join(dir, fmt.Sprintf("%s%04d%s", prefix, frame, ext))
		WriteFile(t, path, 16)
		paths = append(paths, path)
	}
	return paths
}

// FrameSpan returns the frame numbers start..end inclusive.
func FrameSpan(start, end int) []int {
	out := make([]int, 0, end-start+1)
	for f := start; f <= end; f++ {
		out = append(out, f)
	}
	return out
}
