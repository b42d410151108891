package config

const (
	defaultConfigPath      = "~/.config/m4bsplit/config.toml"
	defaultFFprobe         = "ffprobe"
	defaultFFmpeg          = "ffmpeg"
	defaultMaxWorkers      = 4
	defaultInputExtension  = ".m4b"
	defaultOutputExtension = ".m4a"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Tools: Tools{
			FFprobe: defaultFFprobe,
			FFmpeg:  defaultFFmpeg,
		},
		Split: Split{
			MaxWorkers:      defaultMaxWorkers,
			InputExtension:  defaultInputExtension,
			OutputExtension: defaultOutputExtension,
			LockInputs:      true,
		},
		Journal: Journal{
			Path: defaultJournalPath(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
