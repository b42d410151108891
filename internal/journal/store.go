package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"m4bsplit/internal/splitter"
)

// Store records split outcomes in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one recorded file outcome.
type Entry struct {
	ID         int64
	RunID      string
	WorkDir    string
	Input      string
	OutputDir  string
	Status     splitter.FileStatus
	Chapters   int
	Succeeded  int
	Failed     int
	Workers    int
	Elapsed    time.Duration
	Error      string
	Results    []ChapterEntry
	RecordedAt time.Time
}

// ChapterEntry is the per-chapter detail kept alongside an Entry.
type ChapterEntry struct {
	Index    int    `json:"index"`
	FileName string `json:"file_name"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or opens the journal database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordFile stores one file outcome. It satisfies splitter.Recorder.
func (s *Store) RecordFile(ctx context.Context, runID, workDir string, report splitter.FileReport) error {
	details := make([]ChapterEntry, 0, len(report.Chapters))
	for _, ch := range report.Chapters {
		details = append(details, ChapterEntry{
			Index:    ch.Index,
			FileName: ch.FileName,
			ExitCode: ch.ExitCode,
			Error:    ch.Error,
		})
	}
	detailJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal chapter results: %w", err)
	}

	_, err = s.execWithRetry(ctx,
		`INSERT INTO file_results (
            run_id, work_dir, input_path, output_dir, status,
            chapters, succeeded, failed, workers, elapsed_ms,
            error_message, chapters_json, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		workDir,
		report.Input,
		nullableString(report.OutputDir),
		string(report.Status),
		len(report.Chapters),
		report.Succeeded,
		report.Failed,
		report.Workers,
		report.Elapsed.Milliseconds(),
		nullableString(report.Error),
		string(detailJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert file result: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, run_id, work_dir, input_path, output_dir, status,
            chapters, succeeded, failed, workers, elapsed_ms,
            error_message, chapters_json, recorded_at
        FROM file_results ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// Run returns the entries recorded for one run, in processing order.
func (s *Store) Run(ctx context.Context, runID string) ([]Entry, error) {
	return s.query(ctx, `SELECT id, run_id, work_dir, input_path, output_dir, status,
            chapters, succeeded, failed, workers, elapsed_ms,
            error_message, chapters_json, recorded_at
        FROM file_results WHERE run_id = ? ORDER BY id ASC`, runID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query file results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file results: %w", err)
	}
	return entries, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry       Entry
		status      string
		elapsedMS   int64
		outputDir   sql.NullString
		errorMsg    sql.NullString
		detailJSON  sql.NullString
		recordedRaw string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.RunID,
		&entry.WorkDir,
		&entry.Input,
		&outputDir,
		&status,
		&entry.Chapters,
		&entry.Succeeded,
		&entry.Failed,
		&entry.Workers,
		&elapsedMS,
		&errorMsg,
		&detailJSON,
		&recordedRaw,
	); err != nil {
		return Entry{}, fmt.Errorf("scan file result: %w", err)
	}
	entry.Status = splitter.FileStatus(status)
	entry.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	entry.OutputDir = outputDir.String
	entry.Error = errorMsg.String
	if detailJSON.Valid && detailJSON.String != "" {
		if err := json.Unmarshal([]byte(detailJSON.String), &entry.Results); err != nil {
			return Entry{}, fmt.Errorf("decode chapter results for %s: %w", entry.Input, err)
		}
	}
	if recorded, err := time.Parse(time.RFC3339Nano, recordedRaw); err == nil {
		entry.RecordedAt = recorded
	}
	return entry, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	delay := busyRetryInitialBackoff
	var (
		res     sql.Result
		execErr error
	)
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		if execErr == nil || !isSQLiteBusy(execErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return res, execErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
