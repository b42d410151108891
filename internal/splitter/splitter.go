package splitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"m4bsplit/internal/discovery"
	"m4bsplit/internal/logging"
	"m4bsplit/internal/media/ffmpeg"
	"m4bsplit/internal/media/ffprobe"
	"m4bsplit/internal/naming"
)

// ChapterReader lists the chapters of an audiobook.
type ChapterReader interface {
	Chapters(ctx context.Context, path string) ([]ffprobe.Chapter, error)
}

// Cutter extracts one chapter. Failures are reported in the result.
type Cutter interface {
	Cut(ctx context.Context, req ffmpeg.CutRequest) ffmpeg.CutResult
}

// Recorder persists per-file outcomes (the run journal).
type Recorder interface {
	RecordFile(ctx context.Context, runID, workDir string, report FileReport) error
}

// Options configures a Splitter. MaxWorkers and NumCPU are explicit so the
// pool size never depends on ambient process state.
type Options struct {
	MaxWorkers      int
	NumCPU          int
	OutputDir       string
	InputExtension  string
	OutputExtension string
	LockInputs      bool
	DryRun          bool
	Logger          *slog.Logger
	Recorder        Recorder
}

// Splitter turns chaptered audiobooks into one file per chapter.
type Splitter struct {
	reader ChapterReader
	cutter Cutter
	opts   Options
	logger *slog.Logger
}

// New constructs a splitter.
func New(reader ChapterReader, cutter Cutter, opts Options) (*Splitter, error) {
	if reader == nil {
		return nil, errors.New("splitter: chapter reader required")
	}
	if cutter == nil && !opts.DryRun {
		return nil, errors.New("splitter: cutter required")
	}
	if opts.MaxWorkers <= 0 {
		return nil, fmt.Errorf("splitter: max workers must be positive, got %d", opts.MaxWorkers)
	}
	if strings.TrimSpace(opts.InputExtension) == "" {
		opts.InputExtension = ".m4b"
	}
	if strings.TrimSpace(opts.OutputExtension) == "" {
		opts.OutputExtension = ".m4a"
	}
	return &Splitter{
		reader: reader,
		cutter: cutter,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "splitter"),
	}, nil
}

// Workers returns the pool size used for a file with the given number of
// chapters.
func (s *Splitter) Workers(chapters int) int {
	return poolSize(s.opts.MaxWorkers, s.opts.NumCPU, chapters)
}

// Run splits every input file found directly in dir, one file at a time.
// A file's failure is recorded in its report and never stops later files.
// Run only returns an error when dir cannot be listed or ctx is cancelled,
// including a cancellation that lands during the last file; in the latter
// case the report covers the files processed so far.
func (s *Splitter) Run(ctx context.Context, dir string) (RunReport, error) {
	report := RunReport{
		RunID:   uuid.NewString(),
		WorkDir: dir,
		DryRun:  s.opts.DryRun,
		Started: time.Now(),
	}
	ctx = logging.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, s.logger)

	files, err := discovery.Discover(dir, s.opts.InputExtension)
	if err != nil {
		report.Finished = time.Now()
		return report, fmt.Errorf("discover inputs: %w", err)
	}
	if len(files) == 0 {
		logger.Info("no input files found",
			logging.String("dir", dir),
			logging.String("extension", s.opts.InputExtension),
		)
		report.Finished = time.Now()
		return report, nil
	}

	logger.Info("starting split run",
		logging.String("dir", dir),
		logging.Int("files", len(files)),
		logging.Bool("dry_run", s.opts.DryRun),
	)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return s.interrupted(logger, report, len(files), err)
		}
		fileReport := s.ProcessFile(ctx, path)
		report.Files = append(report.Files, fileReport)
		s.record(ctx, report.RunID, dir, fileReport)
	}
	if err := ctx.Err(); err != nil {
		return s.interrupted(logger, report, len(files), err)
	}

	report.Finished = time.Now()
	s.logRunSummary(logger, report)
	return report, nil
}

// ProcessFile reads the chapters of one input, then cuts every chapter across a fresh pool.
// It always returns a report; errors are classified inside it.
func (s *Splitter) ProcessFile(ctx context.Context, path string) (report FileReport) {
	started := time.Now()
	ctx = logging.WithInput(ctx, path)
	logger := logging.WithContext(ctx, s.logger)

	report.Input = path
	defer func() {
		report.Elapsed = time.Since(started)
		s.logFileSummary(logger, report)
	}()

	if s.opts.LockInputs && !s.opts.DryRun {
		lock, err := acquireInputLock(path)
		if err != nil {
			report.fail(err)
			return report
		}
		defer lock.release()
	}

	logger.Info("reading chapters")
	chapters, err := s.reader.Chapters(ctx, path)
	if err != nil {
		report.fail(Wrap(ErrChapters, "split", "read chapters", "", err))
		return report
	}
	if len(chapters) == 0 {
		report.Status = StatusSkipped
		logging.WarnWithContext(logger, "no chapters found", "no_chapters",
			logging.String(logging.FieldErrorHint, "the file has no chapter markers; nothing to split"),
		)
		return report
	}

	folder := naming.OutputFolderName(path)
	if folder == "" {
		report.fail(Wrap(ErrOutput, "split", "name output folder", "input name is empty after sanitizing: "+filepath.Base(path), nil))
		return report
	}
	root := s.opts.OutputDir
	if root == "" {
		root = filepath.Dir(path)
	}
	report.OutputDir = filepath.Join(root, folder)

	tasks := buildTasks(chapters, report.OutputDir, s.opts.OutputExtension)
	report.Workers = s.Workers(len(tasks))

	if s.opts.DryRun {
		report.Status = StatusPlanned
		for _, task := range tasks {
			report.Chapters = append(report.Chapters, plannedResult(task))
		}
		return report
	}

	if err := os.MkdirAll(report.OutputDir, 0o755); err != nil {
		report.fail(Wrap(ErrOutput, "split", "create output folder", report.OutputDir, err))
		return report
	}

	logger.Info("extracting chapters",
		logging.Int("chapters", len(tasks)),
		logging.Int("workers", report.Workers),
		logging.String("output_dir", report.OutputDir),
	)

	for result := range runPool(ctx, report.Workers, tasks, func(ctx context.Context, task chapterTask) ChapterResult {
		return s.extract(ctx, path, task)
	}) {
		s.logChapter(logger, result)
		if result.OK() {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Chapters = append(report.Chapters, result)
	}
	report.sortChapters()

	switch {
	case report.Failed == 0:
		report.Status = StatusCompleted
	case report.Succeeded == 0:
		report.fail(Wrap(ErrExtract, "split", "extract chapters", "no chapter extracted", firstChapterErr(report.Chapters)))
	default:
		report.Status = StatusPartial
		report.Err = Wrap(ErrExtract, "split", "extract chapters",
			fmt.Sprintf("%d of %d chapters failed", report.Failed, len(report.Chapters)), nil)
		report.Error = report.Err.Error()
	}
	return report
}

func (s *Splitter) extract(ctx context.Context, input string, task chapterTask) ChapterResult {
	result := ChapterResult{
		Index:    task.Index,
		Title:    task.Title,
		Start:    task.Start,
		End:      task.End,
		FileName: task.FileName,
		Path:     task.Path,
		ExitCode: -1,
	}
	if task.Start == "" || task.End == "" {
		result.setErr(Wrap(ErrExtract, "extract", task.FileName, "chapter has no start or end time", nil))
		return result
	}
	if err := ctx.Err(); err != nil {
		result.setErr(Wrap(ErrExtract, "extract", task.FileName, "", err))
		return result
	}

	started := time.Now()
	cut := s.cutter.Cut(ctx, ffmpeg.CutRequest{
		Input:  input,
		Start:  task.Start,
		End:    task.End,
		Output: task.Path,
	})
	result.Elapsed = time.Since(started)
	result.ExitCode = cut.ExitCode
	if cut.Err != nil {
		result.setErr(Wrap(ErrExtract, "extract", task.FileName, "", cut.Err))
	} else if cut.ExitCode != 0 {
		result.setErr(Wrap(ErrExtract, "extract", task.FileName, "", &ffmpeg.ExitError{Code: cut.ExitCode, Stderr: cut.Stderr}))
	}
	return result
}

func (r *ChapterResult) setErr(err error) {
	r.Err = err
	r.Error = err.Error()
}

func buildTasks(chapters []ffprobe.Chapter, outputDir, ext string) []chapterTask {
	tasks := make([]chapterTask, 0, len(chapters))
	for i, chapter := range chapters {
		index := i + 1
		name := naming.ChapterFileName(index, chapter.Title(), ext)
		tasks = append(tasks, chapterTask{
			Index:    index,
			Title:    chapter.Title(),
			Start:    chapter.StartTime.String(),
			End:      chapter.EndTime.String(),
			FileName: name,
			Path:     filepath.Join(outputDir, name),
		})
	}
	return tasks
}

func plannedResult(task chapterTask) ChapterResult {
	return ChapterResult{
		Index:    task.Index,
		Title:    task.Title,
		Start:    task.Start,
		End:      task.End,
		FileName: task.FileName,
		Path:     task.Path,
	}
}

func firstChapterErr(results []ChapterResult) error {
	for _, result := range results {
		if result.Err != nil {
			return result.Err
		}
	}
	return nil
}

func (s *Splitter) interrupted(logger *slog.Logger, report RunReport, total int, err error) (RunReport, error) {
	report.Finished = time.Now()
	logger.Warn("split run interrupted",
		logging.Int("processed", len(report.Files)),
		logging.Int("remaining", total-len(report.Files)),
		logging.Error(err),
	)
	return report, err
}

// record journals a file outcome. The write ignores cancellation so a book
// interrupted mid-split still shows up in history.
func (s *Splitter) record(ctx context.Context, runID, workDir string, report FileReport) {
	if s.opts.Recorder == nil || s.opts.DryRun {
		return
	}
	if err := s.opts.Recorder.RecordFile(context.WithoutCancel(ctx), runID, workDir, report); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the journal path in the config"),
			logging.String(logging.FieldImpact, "file outcome missing from history"),
		)
	}
}
