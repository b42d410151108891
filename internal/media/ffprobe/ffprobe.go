package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrChapters marks every failure to obtain chapter metadata: ffprobe could not
// start, exited non-zero, or printed something that is not chapter JSON.
var ErrChapters = errors.New("ffprobe failed")

// Timestamp is a decimal-seconds value as printed by ffprobe. ffprobe emits
// strings ("12.345000") but some builds and wrappers emit bare numbers, so
// both are accepted. The literal text is preserved for passing back to ffmpeg.
type Timestamp string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Timestamp(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = Timestamp(n.String())
	return nil
}

// Seconds returns the timestamp as a float, or NaN when it is not a number.
func (t Timestamp) Seconds() float64 {
	value := strings.TrimSpace(string(t))
	if value == "" {
		return math.NaN()
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return parsed
}

func (t Timestamp) String() string { return string(t) }

// Chapter is one entry of ffprobe's "chapters" array.
type Chapter struct {
	ID        int64             `json:"id"`
	TimeBase  string            `json:"time_base"`
	StartTime Timestamp         `json:"start_time"`
	EndTime   Timestamp         `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// Title returns the chapter's title tag, or "" when there is none.
func (c Chapter) Title() string {
	if c.Tags == nil {
		return ""
	}
	if title, ok := c.Tags["title"]; ok {
		return title
	}
	// Matroska and some muxers upper-case tag keys.
	for key, value := range c.Tags {
		if strings.EqualFold(key, "title") {
			return value
		}
	}
	return ""
}

// DurationSeconds returns end minus start, or NaN when either is unparsable.
func (c Chapter) DurationSeconds() float64 {
	return c.EndTime.Seconds() - c.StartTime.Seconds()
}

// Result is the decoded -show_chapters payload.
type Result struct {
	Chapters []Chapter `json:"chapters"`
}

// Client runs ffprobe for chapter metadata.
type Client struct {
	binary string
}

// NewClient returns a client for the given ffprobe binary. An empty name
// resolves "ffprobe" from PATH.
func NewClient(binary string) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return &Client{binary: binary}
}

// Binary returns the executable the client invokes.
func (c *Client) Binary() string { return c.binary }

// ChapterArgs returns the ffprobe arguments used to list chapters of path.
func ChapterArgs(path string) []string {
	return []string{"-v", "quiet", "-print_format", "json", "-show_chapters", path}
}

// Chapters runs ffprobe against path and returns its chapters in the order
// ffprobe reported them. A payload without a "chapters" field yields an empty
// slice and no error.
func (c *Client) Chapters(ctx context.Context, path string) ([]Chapter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrChapters)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, ChapterArgs(path)...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return nil, fmt.Errorf("%w: %s: %w: %s", ErrChapters, path, err, detail)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrChapters, path, err)
	}

	return Decode(stdout.Bytes())
}

// Decode parses ffprobe JSON output into chapters.
func Decode(payload []byte) ([]Chapter, error) {
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: parse output: %w", ErrChapters, err)
	}
	if result.Chapters == nil {
		return []Chapter{}, nil
	}
	return result.Chapters, nil
}
