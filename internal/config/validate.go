package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownOutputs = map[string]struct{}{
	"plate": {},
	"jpg":   {},
	"png":   {},
	"mov":   {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateFarm(); err != nil {
		return err
	}
	if err := c.validateShotGrid(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRender() error {
	if len(c.Render.Outputs) == 0 {
		return errors.New("render.outputs must include at least one output")
	}
	for _, output := range c.Render.Outputs {
		if _, ok := knownOutputs[output]; !ok {
			return fmt.Errorf("render.outputs: unsupported output %q (want plate, jpg, png or mov)", output)
		}
	}
	if c.Render.FPS <= 0 {
		return errors.New("render.fps must be positive")
	}
	if c.Render.StartFrame < 0 {
		return errors.New("render.start_frame must be >= 0")
	}
	if c.Render.ReformatX < 0 || c.Render.ReformatY < 0 {
		return errors.New("render.reformat_x and render.reformat_y must be >= 0")
	}
	return nil
}

func (c *Config) validateFarm() error {
	if strings.TrimSpace(c.Farm.URL) == "" {
		return errors.New("farm.url must be set (or set DEADLINE_URL)")
	}
	if err := ensurePositiveMap(map[string]int{
		"farm.chunk_size":         c.Farm.ChunkSize,
		"farm.task_chunk_size":    c.Farm.TaskChunkSize,
		"farm.concurrent_tasks":   c.Farm.ConcurrentTasks,
		"farm.copy_batch_size":    c.Farm.CopyBatchSize,
		"farm.submit_timeout":     c.Farm.SubmitTimeout,
		"farm.submit_concurrency": c.Farm.SubmitConcurrency,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateShotGrid() error {
	if c.ShotGrid.SiteURL == "" {
		return nil
	}
	if c.ShotGrid.ScriptName == "" {
		return errors.New("shotgrid.script_name must be set when shotgrid.site_url is set")
	}
	if c.ShotGrid.ScriptKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/iomanager/config.toml"
		}
		return fmt.Errorf("shotgrid.script_key is required. Set SHOTGRID_SCRIPT_KEY env var or edit %s (create with 'iomanager config init')", defaultPath)
	}
	return nil
}

// RequireProject reports whether a project name is configured. Farm batches
// and repository lookups are keyed by it.
func (c *Config) RequireProject() error {
	if c.Project.Name == "" {
		return errors.New("project.name must be set (or set IOMANAGER_PROJECT)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
