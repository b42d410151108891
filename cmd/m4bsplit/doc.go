// Package main hosts the m4bsplit CLI entrypoint and command graph.
//
// The root command splits every audiobook in a directory. Subcommands inspect
// a single book's chapters, run preflight checks, list the run journal, tail
// the log file and scaffold configuration. Splitting logic lives in
// internal/splitter; this package resolves configuration, wires the
// ffprobe/ffmpeg clients and the journal, and renders reports.
package main
