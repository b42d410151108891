package splitter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrChapters = errors.New("chapter read failed")
	ErrLocked   = errors.New("input locked")
	ErrOutput   = errors.New("output folder unavailable")
	ErrExtract  = errors.New("chapter extraction failed")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker so callers can classify it with errors.Is. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExtract
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// EventType returns the log event_type for a file-level error.
func EventType(err error) string {
	switch {
	case errors.Is(err, ErrChapters):
		return "chapters_failed"
	case errors.Is(err, ErrLocked):
		return "input_locked"
	case errors.Is(err, ErrOutput):
		return "output_unavailable"
	case errors.Is(err, ErrExtract):
		return "extract_failed"
	default:
		return "split_failed"
	}
}

// Hint suggests a next step for a file-level error.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrChapters):
		return "verify the file plays and that ffprobe is installed; run m4bsplit chapters <file>"
	case errors.Is(err, ErrLocked):
		return "another m4bsplit run is processing this file; wait for it to finish"
	case errors.Is(err, ErrOutput):
		return "check permissions and free space on the output directory"
	case errors.Is(err, ErrExtract):
		return "inspect the ffmpeg stderr in the log and rerun to regenerate missing chapters"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "split failure"
	}
	return strings.Join(parts, ": ")
}
