// Package ffprobe provides a typed wrapper around ffprobe's chapter listing.
//
// This package has no m4bsplit-specific dependencies.
//
// Key types:
//   - Chapter: one chapter with start/end timestamps and tags
//   - Timestamp: decimal seconds accepting JSON strings or numbers
//   - Client: runs ffprobe -show_chapters and decodes the result
//
// All failures wrap ErrChapters so callers can classify them with errors.Is.
package ffprobe
