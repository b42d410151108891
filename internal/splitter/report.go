package splitter

import (
	"sort"
	"time"
)

// FileStatus is the outcome of splitting one input file.
type FileStatus string

const (
	// StatusCompleted means every chapter was extracted.
	StatusCompleted FileStatus = "completed"
	// StatusPartial means at least one chapter succeeded and at least one failed.
	StatusPartial FileStatus = "partial"
	// StatusFailed means the file could not be processed or no chapter succeeded.
	StatusFailed FileStatus = "failed"
	// StatusSkipped means the file reported no chapters.
	StatusSkipped FileStatus = "skipped"
	// StatusPlanned is used by dry runs: chapters were read but not cut.
	StatusPlanned FileStatus = "planned"
)

// ChapterResult is the outcome of one extraction task.
type ChapterResult struct {
	Index    int           `json:"index"`
	Title    string        `json:"title,omitempty"`
	Start    string        `json:"start"`
	End      string        `json:"end"`
	FileName string        `json:"file_name"`
	Path     string        `json:"path"`
	ExitCode int           `json:"exit_code"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
}

// OK reports whether the chapter was written.
func (r ChapterResult) OK() bool { return r.Err == nil }

// FileReport summarizes one input file.
type FileReport struct {
	Input     string          `json:"input"`
	OutputDir string          `json:"output_dir,omitempty"`
	Status    FileStatus      `json:"status"`
	Workers   int             `json:"workers,omitempty"`
	Chapters  []ChapterResult `json:"chapters,omitempty"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Elapsed   time.Duration   `json:"elapsed_ns"`
	Error     string          `json:"error,omitempty"`
	Err       error           `json:"-"`
}

func (r *FileReport) fail(err error) {
	r.Status = StatusFailed
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// sortChapters orders results by chapter index. Results arrive in completion
// order; the index fixed at submission is the only ordering that matters.
func (r *FileReport) sortChapters() {
	sort.Slice(r.Chapters, func(i, j int) bool {
		return r.Chapters[i].Index < r.Chapters[j].Index
	})
}

// RunReport summarizes a whole batch.
type RunReport struct {
	RunID    string       `json:"run_id"`
	WorkDir  string       `json:"work_dir"`
	DryRun   bool         `json:"dry_run,omitempty"`
	Files    []FileReport `json:"files"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
}

// Totals aggregates file and chapter counts across a run.
type Totals struct {
	Files             int `json:"files"`
	Completed         int `json:"completed"`
	Partial           int `json:"partial"`
	Failed            int `json:"failed"`
	Skipped           int `json:"skipped"`
	Planned           int `json:"planned"`
	Chapters          int `json:"chapters"`
	ChaptersExtracted int `json:"chapters_extracted"`
	ChaptersFailed    int `json:"chapters_failed"`
}

// Totals counts outcomes across all files.
func (r RunReport) Totals() Totals {
	var t Totals
	for _, file := range r.Files {
		t.Files++
		switch file.Status {
		case StatusCompleted:
			t.Completed++
		case StatusPartial:
			t.Partial++
		case StatusFailed:
			t.Failed++
		case StatusSkipped:
			t.Skipped++
		case StatusPlanned:
			t.Planned++
		}
		t.Chapters += len(file.Chapters)
		t.ChaptersExtracted += file.Succeeded
		t.ChaptersFailed += file.Failed
	}
	return t
}

// HasFailures reports whether any file failed outright or lost chapters.
func (r RunReport) HasFailures() bool {
	for _, file := range r.Files {
		if file.Status == StatusFailed || file.Status == StatusPartial {
			return true
		}
	}
	return false
}
