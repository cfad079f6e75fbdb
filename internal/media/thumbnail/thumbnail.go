package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"iomanager/internal/logging"
	"iomanager/internal/services"
)

const defaultWorkers = 4

// Filter scales the still into a 16:10 letterboxed 240x150 frame.
const Filter = `thumbnail,scale=240:150,pad=max(iw\,ih*(16/10)):ow/(16/10):(ow-iw)/2:(oh-ih)/2`

// Task extracts one still from Input into Output.
type Task struct {
	Row    int
	Input  string
	Output string
}

// Result reports the outcome of one task.
type Result struct {
	Task Task
	Err  error
}

// Options configures a Generate call.
type Options struct {
	FFmpeg   string
	Workers  int
	Logger   *slog.Logger
	Progress func(done, total int)
	// Extract overrides the ffmpeg invocation; used by tests.
	Extract func(ctx context.Context, task Task) error
}

// Args returns the ffmpeg arguments that extract task.
func Args(task Task) []string {
	return []string{
		"-i", task.Input,
		"-loglevel", "error",
		"-vf", Filter,
		"-frames:v", "1",
		"-y", task.Output,
	}
}

// Generate runs tasks with at most opts.Workers in flight. A failed task
// never cancels its siblings; the joined error is returned after the last
// task finishes. Results are ordered like tasks.
func Generate(ctx context.Context, tasks []Task, opts Options) ([]Result, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	extract := opts.Extract
	if extract == nil {
		binary := opts.FFmpeg
		if strings.TrimSpace(binary) == "" {
			binary = "ffmpeg"
		}
		extract = func(ctx context.Context, task Task) error {
			return runFFmpeg(ctx, binary, task)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	type indexed struct {
		index int
		err   error
	}
	outcomes := make(chan indexed)
	results := make([]Result, len(tasks))
	done := make(chan error, 1)

	go func() {
		var errs []error
		finished := 0
		for outcome := range outcomes {
			results[outcome.index] = Result{Task: tasks[outcome.index], Err: outcome.err}
			if outcome.err != nil {
				errs = append(errs, outcome.err)
			}
			finished++
			if opts.Progress != nil {
				opts.Progress(finished, len(tasks))
			}
		}
		done <- errors.Join(errs...)
	}()

	var group errgroup.Group
	group.SetLimit(workers)
	for i, task := range tasks {
		group.Go(func() error {
			err := ctx.Err()
			if err == nil {
				err = extract(ctx, task)
			}
			if err != nil {
				err = fmt.Errorf("thumbnail %s: %w", filepath.Base(task.Input), err)
				logging.WarnWithContext(logger, "thumbnail extraction failed", "thumbnail_failed",
					logging.Int(logging.FieldRow, task.Row),
					logging.String("input", task.Input),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check ffmpeg and the source frame"),
				)
			}
			outcomes <- indexed{index: i, err: err}
			return nil
		})
	}
	_ = group.Wait()
	close(outcomes)
	return results, <-done
}

func runFFmpeg(ctx context.Context, binary string, task Task) error {
	if err := os.MkdirAll(filepath.Dir(task.Output), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, binary, Args(task)...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		return services.Wrap(services.ErrExternalTool, "thumbnail", "ffmpeg", detail, err)
	}
	return nil
}
