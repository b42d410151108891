package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// RequireShell skips tests that drive /bin/sh stub executables.
func RequireShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub executables require /bin/sh")
	}
}

// WriteExecutable writes a /bin/sh script named name into dir and returns its
// absolute path.
func WriteExecutable(t testing.TB, dir, name, body string) string {
	t.Helper()
	RequireShell(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

// FakeTools is a pair of scripts standing in for ffprobe and ffmpeg.
//
// Both answer -version with a fake banner. The ffprobe script prints
// fixtures/<input base name>.json and exits 1 when no fixture exists. The
// ffmpeg script appends its arguments to CallsLog and writes them into its
// last argument (the output path), unless the output base name matches the
// configured failure glob, in which case it exits 3.
type FakeTools struct {
	Dir      string
	FFprobe  string
	FFmpeg   string
	CallsLog string
}

// FakeToolsOptions tunes the fake scripts.
type FakeToolsOptions struct {
	// FailOutputs is a shell case pattern matched against the output base
	// name; matching cuts exit 3.
	FailOutputs string
	// CutDelay is passed to sleep before each cut (e.g. "0.05").
	CutDelay string
}

// NewFakeTools writes the fake scripts into a fresh temp directory.
func NewFakeTools(t testing.TB, opts FakeToolsOptions) *FakeTools {
	t.Helper()
	RequireShell(t)

	dir := t.TempDir()
	fixtures := filepath.Join(dir, "fixtures")
	if err := os.MkdirAll(fixtures, 0o755); err != nil {
		t.Fatalf("mkdir fixtures: %v", err)
	}
	calls := filepath.Join(dir, "ffmpeg.calls")

	failPattern := opts.FailOutputs
	if failPattern == "" {
		failPattern = "__never_matches__"
	}
	delay := ""
	if opts.CutDelay != "" {
		delay = fmt.Sprintf("sleep %s\n", opts.CutDelay)
	}

	ffprobeScript := fmt.Sprintf(`if [ "$1" = "-version" ]; then
  echo "ffprobe version fake"
  exit 0
fi
for last; do :; done
fixture=%q/"$(basename -- "$last")".json
if [ -f "$fixture" ]; then
  cat "$fixture"
  exit 0
fi
echo "no fixture for $last" >&2
exit 1
`, fixtures)

	cut := fmt.Sprintf(`if [ "$1" = "-version" ]; then
  echo "ffmpeg version fake"
  exit 0
fi
for last; do :; done
echo "$*" >> %q
%scase "$(basename -- "$last")" in
  %s)
    echo "simulated cut failure" >&2
    exit 3
    ;;
esac
echo "$*" > "$last"
`, calls, delay, failPattern)

	return &FakeTools{
		Dir:      dir,
		FFprobe:  WriteExecutable(t, filepath.Join(dir, "bin"), "ffprobe", ffprobeScript),
		FFmpeg:   WriteExecutable(t, filepath.Join(dir, "bin"), "ffmpeg", cut),
		CallsLog: calls,
	}
}

// SetChapters registers the ffprobe JSON returned for inputs with the given
// base name (e.g. "book.m4b").
func (f *FakeTools) SetChapters(t testing.TB, inputBase, payload string) {
	t.Helper()
	path := filepath.Join(f.Dir, "fixtures", inputBase+".json")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
}

// Calls returns the recorded ffmpeg argument lines.
func (f *FakeTools) Calls(t testing.TB) []string {
	t.Helper()
	data, err := os.ReadFile(f.CallsLog)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read calls log: %v", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
