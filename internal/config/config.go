package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	ScanRoot    string `toml:"scan_root"`
	SharedDrive string `toml:"shared_drive"`
	LogDir      string `toml:"log_dir"`
	StateDir    string `toml:"state_dir"`
	APIBind     string `toml:"api_bind"`
}

// Project identifies the production the batch is submitted for.
type Project struct {
	Name              string   `toml:"name"`
	PlateExtension    string   `toml:"plate_extension"`
	DefaultCompScript string   `toml:"default_comp_script"`
	ExcludedDirs      []string `toml:"excluded_dirs"`
}

// Render contains the render settings shared by every row of a batch.
type Render struct {
	StartFrame         int      `toml:"start_frame"`
	Priority           int      `toml:"priority"`
	FPS                float64  `toml:"fps"`
	Outputs            []string `toml:"outputs"`
	MovieCodec         string   `toml:"movie_codec"`
	ReformatX          int      `toml:"reformat_x"`
	ReformatY          int      `toml:"reformat_y"`
	CropPreset         string   `toml:"crop_preset"`
	InputColorspace    string   `toml:"input_colorspace"`
	OutputColorspace   string   `toml:"output_colorspace"`
	SequenceExtensions []string `toml:"sequence_extensions"`
}

// Farm contains configuration for Deadline job submission.
type Farm struct {
	URL               string `toml:"url"`
	User              string `toml:"user"`
	Pool              string `toml:"pool"`
	SecondaryPool     string `toml:"secondary_pool"`
	ChunkSize         int    `toml:"chunk_size"`
	TaskChunkSize     int    `toml:"task_chunk_size"`
	ConcurrentTasks   int    `toml:"concurrent_tasks"`
	CopyBatchSize     int    `toml:"copy_batch_size"`
	SubmitTimeout     int    `toml:"submit_timeout"`
	SubmitConcurrency int    `toml:"submit_concurrency"`
	NukeVersion       string `toml:"nuke_version"`
	NukeExecutable    string `toml:"nuke_executable"`
	PythonVersion     string `toml:"python_version"`
}

// ShotGrid contains configuration for the shot/task repository.
type ShotGrid struct {
	SiteURL        string `toml:"site_url"`
	ScriptName     string `toml:"script_name"`
	ScriptKey      string `toml:"script_key"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Thumbnails controls preview generation for rows without a thumbnail.
type Thumbnails struct {
	Enabled bool `toml:"enabled"`
	Workers int  `toml:"workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for iomanager.
//
// Configuration sections by subsystem:
//   - Paths: scan root, shared plate drive, logs, ledger state, API bind address
//   - Project: production name and publish conventions
//   - Render: start frame, outputs and image settings applied to every row
//   - Farm: Deadline Web Service connection and chunking
//   - ShotGrid: shot/task repository credentials
//   - Thumbnails: preview generation worker pool
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Project    Project    `toml:"project"`
	Render     Render     `toml:"render"`
	Farm       Farm       `toml:"farm"`
	ShotGrid   ShotGrid   `toml:"shotgrid"`
	Thumbnails Thumbnails `toml:"thumbnails"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/iomanager/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("iomanager.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories iomanager writes to. The shared
// drive is created on a best-effort basis so planning works while the
// storage mount is offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.SharedDrive) != "" {
		_ = os.MkdirAll(c.Paths.SharedDrive, 0o755)
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable name used for clip metadata.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable name used for thumbnails.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// SubmitTimeout returns the per-job farm submission timeout.
func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.Farm.SubmitTimeout) * time.Second
}

// ShotGridTimeout returns the per-request repository timeout.
func (c *Config) ShotGridTimeout() time.Duration {
	return time.Duration(c.ShotGrid.RequestTimeout) * time.Second
}

// LedgerPath returns the SQLite run ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the processing lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "process.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
