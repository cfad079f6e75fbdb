package scripts

import (
	"bytes"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"iomanager/internal/services"
)

// DefaultCopyBatchSize bounds the number of files one copy script moves.
const DefaultCopyBatchSize = 50

// CopyPair maps one source frame to its destination.
type CopyPair struct {
	Source string
	Target string
}

type copyLine struct {
	Number     int
	Source     string
	Target     string
	SourceName string
	TargetName string
}

type copyData struct {
	Index int
	Count int
	Total int
	Width int
	Dirs  []string
	Pairs []copyLine
}

// WriteCopyBatches splits pairs into scripts of at most batchSize copies,
// written as <header>_01.py, <header>_02.py and so on. It returns the script
// paths in order.
func (r *Renderer) WriteCopyBatches(header string, pairs []CopyPair, batchSize int) ([]string, error) {
	if len(pairs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "scripts", "copy batches", "no files to copy", nil)
	}
	if batchSize < 1 {
		batchSize = DefaultCopyBatchSize
	}
	header = strings.TrimSuffix(header, ".py")
	count := (len(pairs) + batchSize - 1) / batchSize
	width := len(strconv.Itoa(len(pairs)))

	paths := make([]string, 0, count)
	for batch := 0; batch < count; batch++ {
		lo := batch * batchSize
		hi := min(lo+batchSize, len(pairs))
		data := copyData{Index: batch + 1, Count: count, Total: len(pairs), Width: width}
		for i, pair := range pairs[lo:hi] {
			data.Pairs = append(data.Pairs, copyLine{
				Number:     lo + i + 1,
				Source:     pair.Source,
				Target:     pair.Target,
				SourceName: filepath.Base(pair.Source),
				TargetName: filepath.Base(pair.Target),
			})
			if dir := filepath.Dir(pair.Target); !slices.Contains(data.Dirs, dir) {
				data.Dirs = append(data.Dirs, dir)
			}
		}
		var buf bytes.Buffer
		if err := r.templates.ExecuteTemplate(&buf, string(KindCopy)+".py.tmpl", data); err != nil {
			return paths, services.Wrap(services.ErrExternalTool, "scripts", "render copy", header, err)
		}
		path := fmt.Sprintf("%s_%02d.py", header, batch+1)
		if err := writeScript(path, buf.Bytes()); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
