package scripts

import (
	"fmt"
	"strings"

	"iomanager/internal/services"
)

// Preview reports the paths scripts would be written to without touching
// the filesystem. It backs plan previews.
type Preview struct{}

// Render returns path.
func (Preview) Render(_ Kind, path string, _ any) (string, error) {
	return path, nil
}

// WriteCopyBatches returns the script paths WriteCopyBatches would write.
func (Preview) WriteCopyBatches(header string, pairs []CopyPair, batchSize int) ([]string, error) {
	if len(pairs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "scripts", "copy batches", "no files to copy", nil)
	}
	if batchSize < 1 {
		batchSize = DefaultCopyBatchSize
	}
	header = strings.TrimSuffix(header, ".py")
	count := (len(pairs) + batchSize - 1) / batchSize
	paths := make([]string, 0, count)
	for batch := 1; batch <= count; batch++ {
		paths = append(paths, fmt.Sprintf("%s_%02d.py", header, batch))
	}
	return paths, nil
}
