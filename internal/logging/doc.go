// Package logging assembles structured slog loggers used across m4bsplit.
//
// It owns the console and JSON handlers, level and output plumbing (stdout
// plus an optional log file), and context helpers that tag lines with the run
// ID and input file. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
