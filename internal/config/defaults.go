package config

const (
	defaultSharedDrive       = "~/projects"
	defaultLogDir            = "~/.local/share/iomanager/logs"
	defaultStateDir          = "~/.local/share/iomanager/state"
	defaultAPIBind           = "127.0.0.1:7490"
	defaultPlateExtension    = "exr"
	defaultStartFrame        = 1001
	defaultPriority          = 50
	defaultFPS               = 23.976
	defaultMovieCodec        = "prores4444"
	defaultCropPreset        = "Original"
	defaultFarmURL           = "http://localhost:8081"
	defaultFarmPool          = "nuke"
	defaultChunkSize         = 5000
	defaultTaskChunkSize     = 10
	defaultConcurrentTasks   = 4
	defaultCopyBatchSize     = 50
	defaultSubmitTimeout     = 30
	defaultSubmitConcurrency = 4
	defaultNukeVersion       = "14.0"
	defaultNukeExecutable    = "nuke"
	defaultPythonVersion     = "3"
	defaultShotGridTimeout   = 20
	defaultThumbnailWorkers  = 4
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

var (
	defaultOutputs            = []string{"plate", "jpg", "mov"}
	defaultSequenceExtensions = []string{".jpg", ".exr", ".dpx", ".png"}
	defaultExcludedDirs       = []string{"_io", "xml", "@eaDir", "proxy_thumb"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SharedDrive: defaultSharedDrive,
			LogDir:      defaultLogDir,
			StateDir:    defaultStateDir,
			APIBind:     defaultAPIBind,
		},
		Project: Project{
			PlateExtension: defaultPlateExtension,
			ExcludedDirs:   append([]string(nil), defaultExcludedDirs...),
		},
		Render: Render{
			StartFrame:         defaultStartFrame,
			Priority:           defaultPriority,
			FPS:                defaultFPS,
			Outputs:            append([]string(nil), defaultOutputs...),
			MovieCodec:         defaultMovieCodec,
			CropPreset:         defaultCropPreset,
			SequenceExtensions: append([]string(nil), defaultSequenceExtensions...),
		},
		Farm: Farm{
			URL:               defaultFarmURL,
			Pool:              defaultFarmPool,
			ChunkSize:         defaultChunkSize,
			TaskChunkSize:     defaultTaskChunkSize,
			ConcurrentTasks:   defaultConcurrentTasks,
			CopyBatchSize:     defaultCopyBatchSize,
			SubmitTimeout:     defaultSubmitTimeout,
			SubmitConcurrency: defaultSubmitConcurrency,
			NukeVersion:       defaultNukeVersion,
			NukeExecutable:    defaultNukeExecutable,
			PythonVersion:     defaultPythonVersion,
		},
		ShotGrid: ShotGrid{
			RequestTimeout: defaultShotGridTimeout,
		},
		Thumbnails: Thumbnails{
			Enabled: true,
			Workers: defaultThumbnailWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
