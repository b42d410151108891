package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"m4bsplit/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The journal lives under the temp dir but stays disabled unless WithJournal
// is passed.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = ""
	cfgVal.Journal.Path = filepath.Join(base, "data", "history.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithJournal enables the SQLite run journal.
func WithJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = true
	}
}

// WithMaxWorkers overrides the worker cap.
func WithMaxWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Split.MaxWorkers = n
	}
}

// WithFakeTools points the config at the fake ffprobe/ffmpeg scripts.
func WithFakeTools(tools *FakeTools) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tools.FFprobe = tools.FFprobe
		b.cfg.Tools.FFmpeg = tools.FFmpeg
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends them to PATH. If names is empty, ffprobe and ffmpeg are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		RequireShell(b.t)
		if len(names) == 0 {
			names = []string{"ffprobe", "ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteExecutable(b.t, binDir, name, "exit 0\n")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(filepath.Dir(cfg.Journal.Path))
}
