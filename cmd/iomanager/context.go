package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"iomanager/internal/batch"
	"iomanager/internal/config"
	"iomanager/internal/farm"
	"iomanager/internal/jobgraph"
	"iomanager/internal/ledger"
	"iomanager/internal/logging"
	"iomanager/internal/metrics"
	"iomanager/internal/reconcile"
	"iomanager/internal/rows"
	"iomanager/internal/scripts"
	"iomanager/internal/shotgrid"
)

type commandContext struct {
	configFlag   *string
	manifestFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	ledger *ledger.Store
}

func newCommandContext(configFlag, manifestFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		manifestFlag: manifestFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// log returns a logger writing to the log file only, so command output
// stays clean. Falls back to a no-op logger when the file cannot be opened.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		c.logger = logging.NewNop()
		cfg, err := c.ensureConfig()
		if err != nil {
			return
		}
		if logger, err := logging.NewFileLogger(cfg); err == nil {
			c.logger = logger
		}
	})
	return c.logger
}

func (c *commandContext) openLedger() (*ledger.Store, error) {
	if c.ledger != nil {
		return c.ledger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	c.ledger = store
	return store, nil
}

func (c *commandContext) close() {
	if c.ledger != nil {
		_ = c.ledger.Close()
		c.ledger = nil
	}
}

// processor wires the batch processor against Deadline, ShotGrid and the
// run ledger.
func (c *commandContext) processor(collector *metrics.Collector) (*batch.Processor, *shotgrid.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := c.openLedger()
	if err != nil {
		return nil, nil, err
	}
	renderer, err := scripts.New()
	if err != nil {
		return nil, nil, err
	}
	client := shotgrid.NewConfigured(cfg)
	var repo jobgraph.ShotRepository
	var updater jobgraph.ShotUpdater
	if client != nil {
		repo = client
		updater = client
	}
	builder := jobgraph.NewBuilder(renderer, updater, c.log())
	if client != nil {
		builder.Versions = client
	}
	return batch.NewProcessor(builder, farm.NewConfiguredDeadline(cfg), repo, store, collector, c.log()), client, nil
}

// planner builds graphs without writing scripts or calling ShotGrid.
func (c *commandContext) planner() *jobgraph.Builder {
	return jobgraph.NewBuilder(scripts.Preview{}, nil, c.log())
}

func (c *commandContext) reconcileSettings(cfg *config.Config) reconcile.Settings {
	return reconcile.Settings{
		ConfiguredStart: cfg.Render.StartFrame,
		FPS:             cfg.Render.FPS,
		Timecodes: rows.TimecodeSource{
			FFprobe:    cfg.FFprobeBinary(),
			Extensions: cfg.Render.SequenceExtensions,
		},
	}
}

// scanRoot resolves the positional root argument, defaulting to the
// configured scan root.
func (c *commandContext) scanRoot(args []string) (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	root := cfg.Paths.ScanRoot
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		root = args[0]
	}
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("no scan root given and paths.scan_root is not set")
	}
	return config.ExpandPath(root)
}

// manifestPath returns --manifest or the default manifest of the scan root.
func (c *commandContext) manifestPath() (string, error) {
	if c.manifestFlag != nil && strings.TrimSpace(*c.manifestFlag) != "" {
		return config.ExpandPath(*c.manifestFlag)
	}
	root, err := c.scanRoot(nil)
	if err != nil {
		return "", err
	}
	return rows.ManifestPath(root), nil
}

func (c *commandContext) loadManifest() (rows.Manifest, string, error) {
	path, err := c.manifestPath()
	if err != nil {
		return rows.Manifest{}, "", err
	}
	manifest, err := rows.ReadManifest(path)
	if err != nil {
		return rows.Manifest{}, path, fmt.Errorf("%w (run `iomanager scan` first)", err)
	}
	return manifest, path, nil
}

// resolveRow accepts a 1-based row number or a scan name.
func resolveRow(manifest rows.Manifest, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(manifest.Rows) {
			return 0, fmt.Errorf("row %d out of range (manifest has %d rows)", n, len(manifest.Rows))
		}
		return n - 1, nil
	}
	for i, row := range manifest.Rows {
		if row.ScanName == ref {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no row named %q", ref)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
