// Package ffmpeg wraps the ffmpeg invocation that cuts one chapter out of an
// audiobook with stream copy.
//
// The exit status is part of every CutResult: a non-zero exit becomes an
// *ExitError instead of being discarded.
package ffmpeg
