package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"m4bsplit/internal/config"
	"m4bsplit/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	tools      *testsupport.FakeTools
	configPath string
	workDir    string
}

// setupCLITestEnv writes a config pointing at fake ffprobe/ffmpeg scripts and
// an isolated HOME. The journal is enabled so history has something to read.
func setupCLITestEnv(t *testing.T, opts testsupport.FakeToolsOptions) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	tools := testsupport.NewFakeTools(t, opts)
	cfg := testsupport.NewConfig(t, testsupport.WithFakeTools(tools), testsupport.WithJournal())
	cfg.Logging.Level = "error"

	configPath := filepath.Join(homeDir, ".config", "m4bsplit", "config.toml")
	writeTestConfig(t, configPath, cfg)

	workDir := filepath.Join(base, "books")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		t.Fatalf("mkdir work dir: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		tools:      tools,
		configPath: configPath,
		workDir:    workDir,
	}
}

// addBook places name in the work dir and registers its chapter listing.
func (e *cliTestEnv) addBook(t *testing.T, name string, chapters ...[3]string) string {
	t.Helper()
	path := testsupport.WriteInput(t, e.workDir, name)
	e.tools.SetChapters(t, name, testsupport.ChaptersJSON(chapters...))
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}

var bookChapters = [][3]string{
	{"0.000000", "60.000000", "Intro"},
	{"60.000000", "120.000000", "Part: 1"},
	{"120.000000", "180.000000", "3"},
}
