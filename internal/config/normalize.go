package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProject()
	c.normalizeRender()
	c.normalizeFarm()
	c.normalizeShotGrid()
	if c.Thumbnails.Workers <= 0 {
		c.Thumbnails.Workers = defaultThumbnailWorkers
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScanRoot) != "" {
		if c.Paths.ScanRoot, err = expandPath(c.Paths.ScanRoot); err != nil {
			return fmt.Errorf("paths.scan_root: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.SharedDrive) == "" {
		c.Paths.SharedDrive = defaultSharedDrive
	}
	if c.Paths.SharedDrive, err = expandPath(c.Paths.SharedDrive); err != nil {
		return fmt.Errorf("paths.shared_drive: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeProject() {
	c.Project.Name = strings.TrimSpace(c.Project.Name)
	if c.Project.Name == "" {
		if value, ok := os.LookupEnv("IOMANAGER_PROJECT"); ok {
			c.Project.Name = strings.TrimSpace(value)
		}
	}
	c.Project.PlateExtension = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Project.PlateExtension)), ".")
	if c.Project.PlateExtension == "" {
		c.Project.PlateExtension = defaultPlateExtension
	}
	c.Project.DefaultCompScript = strings.TrimSpace(c.Project.DefaultCompScript)
	if len(c.Project.ExcludedDirs) == 0 {
		c.Project.ExcludedDirs = append([]string(nil), defaultExcludedDirs...)
	}
}

func (c *Config) normalizeRender() {
	outputs := make([]string, 0, len(c.Render.Outputs))
	seen := make(map[string]struct{}, len(c.Render.Outputs))
	for _, output := range c.Render.Outputs {
		normalized := strings.ToLower(strings.TrimSpace(output))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		outputs = append(outputs, normalized)
	}
	c.Render.Outputs = outputs

	exts := make([]string, 0, len(c.Render.SequenceExtensions))
	for _, ext := range c.Render.SequenceExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append([]string(nil), defaultSequenceExtensions...)
	}
	c.Render.SequenceExtensions = exts

	c.Render.CropPreset = strings.TrimSpace(c.Render.CropPreset)
	if c.Render.CropPreset == "" {
		c.Render.CropPreset = defaultCropPreset
	}
	c.Render.MovieCodec = strings.TrimSpace(c.Render.MovieCodec)
	if c.Render.MovieCodec == "" {
		c.Render.MovieCodec = defaultMovieCodec
	}
}

func (c *Config) normalizeFarm() {
	c.Farm.URL = strings.TrimRight(strings.TrimSpace(c.Farm.URL), "/")
	if c.Farm.URL == "" {
		if value, ok := os.LookupEnv("DEADLINE_URL"); ok {
			c.Farm.URL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	if c.Farm.URL == "" {
		c.Farm.URL = defaultFarmURL
	}
	c.Farm.User = strings.TrimSpace(c.Farm.User)
	if c.Farm.User == "" {
		if value, ok := os.LookupEnv("USER"); ok {
			c.Farm.User = strings.TrimSpace(value)
		}
	}
	c.Farm.Pool = strings.TrimSpace(c.Farm.Pool)
	c.Farm.SecondaryPool = strings.TrimSpace(c.Farm.SecondaryPool)
	if c.Farm.TaskChunkSize <= 0 {
		c.Farm.TaskChunkSize = defaultTaskChunkSize
	}
	if c.Farm.ConcurrentTasks <= 0 {
		c.Farm.ConcurrentTasks = defaultConcurrentTasks
	}
	if c.Farm.SubmitConcurrency <= 0 {
		c.Farm.SubmitConcurrency = 1
	}
	if strings.TrimSpace(c.Farm.NukeExecutable) == "" {
		c.Farm.NukeExecutable = defaultNukeExecutable
	}
}

func (c *Config) normalizeShotGrid() {
	c.ShotGrid.SiteURL = strings.TrimRight(strings.TrimSpace(c.ShotGrid.SiteURL), "/")
	c.ShotGrid.ScriptName = strings.TrimSpace(c.ShotGrid.ScriptName)
	c.ShotGrid.ScriptKey = strings.TrimSpace(c.ShotGrid.ScriptKey)
	if c.ShotGrid.ScriptKey == "" {
		if value, ok := os.LookupEnv("SHOTGRID_SCRIPT_KEY"); ok {
			c.ShotGrid.ScriptKey = strings.TrimSpace(value)
		}
	}
	if c.ShotGrid.RequestTimeout <= 0 {
		c.ShotGrid.RequestTimeout = defaultShotGridTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
