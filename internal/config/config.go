package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains output and log directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Tools names the external media binaries.
type Tools struct {
	FFprobe string `toml:"ffprobe"`
	FFmpeg  string `toml:"ffmpeg"`
}

// Split contains configuration for chapter extraction.
type Split struct {
	MaxWorkers      int    `toml:"max_workers"`
	InputExtension  string `toml:"input_extension"`
	OutputExtension string `toml:"output_extension"`
	LockInputs      bool   `toml:"lock_inputs"`
}

// Journal contains configuration for the run history database.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for m4bsplit.
//
// Configuration sections:
//   - Paths: output root and optional log directory
//   - Tools: ffprobe/ffmpeg binaries
//   - Split: worker cap and file extensions
//   - Journal: optional SQLite run history
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Tools   Tools   `toml:"tools"`
	Split   Split   `toml:"split"`
	Journal Journal `toml:"journal"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error: defaults are returned and exists is false.
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("m4bsplit.toml")
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

// EnsureDirectories creates the directories the configuration points at.
// The output root is left alone: per-book folders are created on demand.
func (c *Config) EnsureDirectories() error {
	if c.Paths.LogDir != "" {
		if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
		}
	}
	if c.Journal.Enabled && c.Journal.Path != "" {
		dir := filepath.Dir(c.Journal.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal directory %q: %w", dir, err)
		}
	}
	return nil
}

// Workers returns the extraction pool size for a host with numCPU logical
// CPUs: the smaller of split.max_workers and numCPU, never below one.
func (c *Config) Workers(numCPU int) int {
	workers := c.Split.MaxWorkers
	if workers <= 0 {
		workers = defaultMaxWorkers
	}
	if numCPU > 0 && numCPU < workers {
		workers = numCPU
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// FFprobeBinary returns the ffprobe executable used for chapter inspection.
func (c *Config) FFprobeBinary() string {
	if c.Tools.FFprobe == "" {
		return defaultFFprobe
	}
	return c.Tools.FFprobe
}

// FFmpegBinary returns the ffmpeg executable used for chapter extraction.
func (c *Config) FFmpegBinary() string {
	if c.Tools.FFmpeg == "" {
		return defaultFFmpeg
	}
	return c.Tools.FFmpeg
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

func defaultJournalPath() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "m4bsplit", "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/share/m4bsplit/history.db"
	}
	return filepath.Join(home, ".local", "share", "m4bsplit", "history.db")
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
