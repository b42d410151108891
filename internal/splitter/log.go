package splitter

import (
	"log/slog"
	"time"

	"m4bsplit/internal/logging"
)

func (s *Splitter) logChapter(logger *slog.Logger, result ChapterResult) {
	attrs := []logging.Attr{
		logging.Int(logging.FieldChapterIndex, result.Index),
		logging.String(logging.FieldOutput, result.FileName),
		logging.Int(logging.FieldExitCode, result.ExitCode),
	}
	if result.OK() {
		attrs = append(attrs, logging.Duration("elapsed", result.Elapsed.Round(time.Millisecond)))
		logger.Info("chapter extracted", logging.Args(attrs...)...)
		return
	}
	attrs = append(attrs,
		logging.Error(result.Err),
		logging.String(logging.FieldErrorHint, Hint(result.Err)),
		logging.String(logging.FieldImpact, "chapter missing from output folder"),
	)
	logging.WarnWithContext(logger, "chapter extraction failed", "chapter_failed", attrs...)
}

func (s *Splitter) logFileSummary(logger *slog.Logger, report FileReport) {
	attrs := []logging.Attr{
		logging.String("status", string(report.Status)),
		logging.Int("chapters", len(report.Chapters)),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Duration("elapsed", report.Elapsed.Round(time.Millisecond)),
	}
	if report.OutputDir != "" {
		attrs = append(attrs, logging.String("output_dir", report.OutputDir))
	}

	switch report.Status {
	case StatusFailed:
		attrs = append(attrs,
			logging.Error(report.Err),
			logging.String(logging.FieldErrorHint, Hint(report.Err)),
		)
		logging.ErrorWithContext(logger, "file split failed", EventType(report.Err), attrs...)
	case StatusPartial:
		attrs = append(attrs,
			logging.Error(report.Err),
			logging.String(logging.FieldErrorHint, Hint(report.Err)),
			logging.String(logging.FieldImpact, "some chapters missing from output folder"),
		)
		logging.WarnWithContext(logger, "file split incomplete", "file_partial", attrs...)
	case StatusSkipped:
		logger.Info("file skipped", logging.Args(attrs...)...)
	case StatusPlanned:
		logger.Info("file planned", logging.Args(attrs...)...)
	default:
		logger.Info("file split complete", logging.Args(attrs...)...)
	}
}

func (s *Splitter) logRunSummary(logger *slog.Logger, report RunReport) {
	totals := report.Totals()
	attrs := []logging.Attr{
		logging.Int("files", totals.Files),
		logging.Int("completed", totals.Completed),
		logging.Int("partial", totals.Partial),
		logging.Int("failed", totals.Failed),
		logging.Int("skipped", totals.Skipped),
		logging.Int("chapters_extracted", totals.ChaptersExtracted),
		logging.Int("chapters_failed", totals.ChaptersFailed),
		logging.Duration("elapsed", report.Finished.Sub(report.Started).Round(time.Millisecond)),
	}
	if report.DryRun {
		attrs = append(attrs, logging.Int("planned", totals.Planned))
	}
	if report.HasFailures() {
		logging.WarnWithContext(logger, "split run finished with failures", "run_failures",
			append(attrs,
				logging.String(logging.FieldErrorHint, "rerun after fixing the files listed above; completed books are rewritten in place"),
				logging.String(logging.FieldImpact, "some books were not fully split"),
			)...,
		)
		return
	}
	logger.Info("split run finished", logging.Args(attrs...)...)
}
