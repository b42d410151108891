// Package logs reads back the m4bsplit log file for the logs command: the
// last N lines, then optionally new lines as they are appended.
package logs
