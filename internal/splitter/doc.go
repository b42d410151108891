// Package splitter drives the chapter split: it discovers audiobooks, reads
// their chapters, and fans extraction out over a bounded worker pool.
//
// Key types:
//   - Splitter: entry point; Run processes a directory, ProcessFile one book
//   - ChapterReader / Cutter: the ffprobe and ffmpeg seams, faked in tests
//   - FileReport / RunReport: per-book and per-run outcomes
//
// Books are processed one at a time. Within a book, min(MaxWorkers, NumCPU)
// workers cut chapters concurrently and results stream back in completion
// order. Chapter numbering is fixed before submission, so it always follows
// the order ffprobe reported.
//
// Errors are classified with the ErrChapters, ErrLocked, ErrOutput and
// ErrExtract markers. A failure never stops sibling chapters or later books.
package splitter
