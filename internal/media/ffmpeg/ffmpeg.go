package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// stderrTailLimit bounds how much ffmpeg stderr is kept per cut.
const stderrTailLimit = 4 << 10

// CutRequest describes one stream-copy extraction.
type CutRequest struct {
	Input  string
	Start  string
	End    string
	Output string
}

// CutResult is the outcome of one ffmpeg invocation. ExitCode is -1 when the
// process never produced an exit status (it could not start, or was killed).
type CutResult struct {
	ExitCode int
	Stderr   string
	Err      error
}

// OK reports whether the cut exited cleanly.
func (r CutResult) OK() bool { return r.Err == nil && r.ExitCode == 0 }

// ExitError reports an ffmpeg run that exited with a non-zero status.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg exited with status %d", e.Code)
	}
	return fmt.Sprintf("ffmpeg exited with status %d: %s", e.Code, lastLine(e.Stderr))
}

// CutArgs returns the ffmpeg arguments for a lossless chapter cut.
func CutArgs(req CutRequest) []string {
	return []string{
		"-y",
		"-i", req.Input,
		"-ss", req.Start,
		"-to", req.End,
		"-c", "copy",
		req.Output,
	}
}

// Runner abstracts process execution for tests.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, stderr io.Writer) (exitCode int, err error)
}

// Option configures a Cutter.
type Option func(*Cutter)

// WithRunner injects a custom runner.
func WithRunner(r Runner) Option {
	return func(c *Cutter) {
		if r != nil {
			c.runner = r
		}
	}
}

// Cutter runs ffmpeg to extract chapters. It is safe for concurrent use.
type Cutter struct {
	binary string
	runner Runner
}

// NewCutter returns a cutter for the given ffmpeg binary. An empty name
// resolves "ffmpeg" from PATH.
func NewCutter(binary string, opts ...Option) *Cutter {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	c := &Cutter{binary: binary, runner: commandRunner{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Binary returns the executable the cutter invokes.
func (c *Cutter) Binary() string { return c.binary }

// Cut runs one extraction and always returns a result; failures are carried
// in CutResult.Err rather than returned separately.
func (c *Cutter) Cut(ctx context.Context, req CutRequest) CutResult {
	if req.Input == "" || req.Output == "" {
		return CutResult{ExitCode: -1, Err: errors.New("ffmpeg cut: input and output required")}
	}
	if err := ctx.Err(); err != nil {
		return CutResult{ExitCode: -1, Err: err}
	}

	tail := &tailBuffer{limit: stderrTailLimit}
	code, err := c.runner.Run(ctx, c.binary, CutArgs(req), tail)
	stderr := strings.TrimSpace(tail.String())
	switch {
	case err != nil && ctx.Err() != nil:
		return CutResult{ExitCode: code, Stderr: stderr, Err: fmt.Errorf("ffmpeg cut %s: %w", req.Output, ctx.Err())}
	case err != nil:
		return CutResult{ExitCode: code, Stderr: stderr, Err: fmt.Errorf("ffmpeg cut %s: %w", req.Output, err)}
	case code != 0:
		return CutResult{ExitCode: code, Stderr: stderr, Err: &ExitError{Code: code, Stderr: stderr}}
	}
	return CutResult{ExitCode: 0, Stderr: stderr}
}

type commandRunner struct{}

// Run reports a non-zero exit through exitCode with a nil error; err is set
// only when the process could not run to completion.
func (commandRunner) Run(ctx context.Context, binary string, args []string, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
	}
	return -1, err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
