package splitter_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"m4bsplit/internal/journal"
	"m4bsplit/internal/logging"
	"m4bsplit/internal/media/ffmpeg"
	"m4bsplit/internal/media/ffprobe"
	"m4bsplit/internal/splitter"
	"m4bsplit/internal/testsupport"
)

type fakeReader struct {
	chapters map[string][]ffprobe.Chapter
	errs     map[string]error
}

func (f *fakeReader) Chapters(_ context.Context, path string) ([]ffprobe.Chapter, error) {
	base := filepath.Base(path)
	if err := f.errs[base]; err != nil {
		return nil, err
	}
	return f.chapters[base], nil
}

type fakeCutter struct {
	delay    func(req ffmpeg.CutRequest) time.Duration
	exitCode func(req ffmpeg.CutRequest) int

	calls  atomic.Int32
	active atomic.Int32
	peak   atomic.Int32

	mu    sync.Mutex
	order []string
}

func (f *fakeCutter) Cut(ctx context.Context, req ffmpeg.CutRequest) ffmpeg.CutResult {
	f.calls.Add(1)
	now := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if now <= peak || f.peak.CompareAndSwap(peak, now) {
			break
		}
	}

	if f.delay != nil {
		select {
		case <-time.After(f.delay(req)):
		case <-ctx.Done():
			return ffmpeg.CutResult{ExitCode: -1, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	f.order = append(f.order, filepath.Base(req.Output))
	f.mu.Unlock()

	if f.exitCode != nil {
		if code := f.exitCode(req); code != 0 {
			return ffmpeg.CutResult{ExitCode: code, Err: &ffmpeg.ExitError{Code: code, Stderr: "boom"}}
		}
	}
	if err := os.WriteFile(req.Output, []byte(req.Start+"-"+req.End), 0o644); err != nil {
		return ffmpeg.CutResult{ExitCode: -1, Err: err}
	}
	return ffmpeg.CutResult{}
}

func chapters(titles ...string) []ffprobe.Chapter {
	out := make([]ffprobe.Chapter, 0, len(titles))
	for i, title := range titles {
		ch := ffprobe.Chapter{
			ID:        int64(i),
			StartTime: ffprobe.Timestamp(strings.Repeat("1", i+1)),
			EndTime:   ffprobe.Timestamp(strings.Repeat("2", i+1)),
		}
		if title != "" {
			ch.Tags = map[string]string{"title": title}
		}
		out = append(out, ch)
	}
	return out
}

func newSplitter(t *testing.T, reader splitter.ChapterReader, cutter splitter.Cutter, mutate ...func(*splitter.Options)) *splitter.Splitter {
	t.Helper()
	opts := splitter.Options{
		MaxWorkers: 4,
		NumCPU:     4,
		LockInputs: true,
		Logger:     logging.NewNop(),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	s, err := splitter.New(reader, cutter, opts)
	if err != nil {
		t.Fatalf("splitter.New: %v", err)
	}
	return s
}

func TestProcessFileBookExample(t *testing.T) {
	dir := t.TempDir()
	input := testsupport.WriteInput(t, dir, "book.m4b")
	reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{
		"book.m4b": chapters("Intro", "2", ""),
	}}
	cutter := &fakeCutter{}

	report := newSplitter(t, reader, cutter).ProcessFile(context.Background(), input)

	if report.Status != splitter.StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", report.Status, report.Err)
	}
	if report.OutputDir != filepath.Join(dir, "book") {
		t.Fatalf("unexpected output dir %q", report.OutputDir)
	}
	want := []string{"Chapter_01_Intro.m4a", "Chapter_02.m4a", "Chapter_03.m4a"}
	if got := testsupport.ListDir(t, report.OutputDir); !reflect.DeepEqual(got, want) {
		t.Fatalf("output files = %v, want %v", got, want)
	}
	if report.Succeeded != 3 || report.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", report)
	}
}

func TestProcessFileNumbersFollowChapterOrderNotCompletion(t *testing.T) {
	dir := t.TempDir()
	input := testsupport.WriteInput(t, dir, "saga.m4b")
	titles := []string{"One", "Two", "Three", "Four", "Five", "Six"}
	reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{"saga.m4b": chapters(titles...)}}
	// Later chapters finish first.
	cutter := &fakeCutter{delay: func(req ffmpeg.CutRequest) time.Duration {
		return time.Duration(10-len(req.Start)) * 5 * time.Millisecond
	}}

	report := newSplitter(t, reader, cutter, func(o *splitter.Options) {
		o.MaxWorkers = 6
		o.NumCPU = 6
	}).ProcessFile(context.Background(), input)

	if report.Status != splitter.StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", report.Status, report.Err)
	}
	for i, result := range report.Chapters {
		if result.Index != i+1 {
			t.Fatalf("chapter %d reported index %d", i, result.Index)
		}
		wantName := "Chapter_0" + string(rune('1'+i)) + "_" + titles[i] + ".m4a"
		if result.FileName != wantName {
			t.Fatalf("chapter %d name = %q, want %q", i+1, result.FileName, wantName)
		}
		data, err := os.ReadFile(result.Path)
		if err != nil {
			t.Fatalf("read %s: %v", result.Path, err)
		}
		if want := strings.Repeat("1", i+1) + "-" + strings.Repeat("2", i+1); string(data) != want {
			t.Fatalf("%s holds %q, want %q", result.FileName, data, want)
		}
	}
	cutter.mu.Lock()
	first := cutter.order[0]
	cutter.mu.Unlock()
	if first == "Chapter_01_One.m4a" {
		t.Fatalf("expected completion order to differ from chapter order, got %v", cutter.order)
	}
}

func TestProcessFileRespectsWorkerLimit(t *testing.T) {
	cases := []struct {
		name       string
		maxWorkers int
		numCPU     int
		wantLimit  int32
	}{
		{name: "cpu bound", maxWorkers: 4, numCPU: 2, wantLimit: 2},
		{name: "cap bound", maxWorkers: 3, numCPU: 16, wantLimit: 3},
		{name: "single", maxWorkers: 1, numCPU: 8, wantLimit: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			input := testsupport.WriteInput(t, dir, "long.m4b")
			reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{
				"long.m4b": chapters("a", "b", "c", "d", "e", "f", "g", "h", "i", "j"),
			}}
			cutter := &fakeCutter{delay: func(ffmpeg.CutRequest) time.Duration { return 15 * time.Millisecond }}

			s := newSplitter(t, reader, cutter, func(o *splitter.Options) {
				o.MaxWorkers = tc.maxWorkers
				o.NumCPU = tc.numCPU
			})
			report := s.ProcessFile(context.Background(), input)

			if report.Status != splitter.StatusCompleted {
				t.Fatalf("expected completed, got %s", report.Status)
			}
			if report.Workers != int(tc.wantLimit) {
				t.Fatalf("workers = %d, want %d", report.Workers, tc.wantLimit)
			}
			if peak := cutter.peak.Load(); peak > tc.wantLimit || peak < 1 {
				t.Fatalf("peak concurrency %d outside [1,%d]", peak, tc.wantLimit)
			}
			if got := cutter.calls.Load(); got != 10 {
				t.Fatalf("expected 10 cuts, got %d", got)
			}
		})
	}
}

func TestProcessFileIsolatesChapterFailures(t *testing.T) {
	dir := t.TempDir()
	input := testsupport.WriteInput(t, dir, "book.m4b")
	reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{"book.m4b": chapters("Intro", "Middle", "End")}}
	cutter := &fakeCutter{exitCode: func(req ffmpeg.CutRequest) int {
		if strings.Contains(req.Output, "Middle") {
			return 1
		}
		return 0
	}}

	report := newSplitter(t, reader, cutter).ProcessFile(context.Background(), input)

	if report.Status != splitter.StatusPartial {
		t.Fatalf("expected partial, got %s", report.Status)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("unexpected counts: succeeded=%d failed=%d", report.Succeeded, report.Failed)
	}
	failed := report.Chapters[1]
	if failed.OK() || failed.ExitCode != 1 {
		t.Fatalf("expected chapter 2 to fail with exit 1, got %+v", failed)
	}
	if !errors.Is(failed.Err, splitter.ErrExtract) {
		t.Fatalf("expected ErrExtract, got %v", failed.Err)
	}
	var exitErr *ffmpeg.ExitError
	if !errors.As(failed.Err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("expected wrapped ExitError, got %v", failed.Err)
	}
	want := []string{"Chapter_01_Intro.m4a", "Chapter_03_End.m4a"}
	if got := testsupport.ListDir(t, report.OutputDir); !reflect.DeepEqual(got, want) {
		t.Fatalf("output files = %v, want %v", got, want)
	}
	if !errors.Is(report.Err, splitter.ErrExtract) || !strings.Contains(report.Error, "1 of 3") {
		t.Fatalf("unexpected file error: %v", report.Err)
	}
}

func TestProcessFileAllChaptersFailing(t *testing.T) {
	input := testsupport.WriteInput(t, t.TempDir(), "book.m4b")
	reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{"book.m4b": chapters("A", "B")}}
	cutter := &fakeCutter{exitCode: func(ffmpeg.CutRequest) int { return 69 }}

	report := newSplitter(t, reader, cutter).ProcessFile(context.Background(), input)

	if report.Status != splitter.StatusFailed {
		t.Fatalf("expected failed, got %s", report.Status)
	}
	if report.Failed != 2 || report.Succeeded != 0 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if !errors.Is(report.Err, splitter.ErrExtract) {
		t.Fatalf("expected ErrExtract, got %v", report.Err)
	}
}

func TestProcessFileMissingTimestamps(t *testing.T) {
	input := testsupport.WriteInput(t, t.TempDir(), "book.m4b")
	broken := chapters("A", "B")
	broken[1].EndTime = ""
	reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{"book.m4b": broken}}
	cutter := &fakeCutter{}

	report := newSplitter(t, reader, cutter).ProcessFile(context.Background(), input)

	if report.Status != splitter.StatusPartial {
		t.Fatalf("expected partial, got %s", report.Status)
	}
	if got := cutter.calls.Load(); got != 1 {
		t.Fatalf("chapter without timestamps must not reach ffmpeg; calls=%d", got)
	}
	if report.Chapters[1].ExitCode != -1 || !errors.Is(report.Chapters[1].Err, splitter.ErrExtract) {
		t.Fatalf("unexpected result: %+v", report.Chapters[1])
	}
}

func TestProcessFileSkipsFilesWithoutChapters(t *testing.T) {
	dir := t.TempDir()
	input := testsupport.WriteInput(t, dir, "empty.m4b")
	reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{"empty.m4b": {}}}
	cutter := &fakeCutter{}

	report := newSplitter(t, reader, cutter).ProcessFile(context.Background(), input)

	if report.Status != splitter.StatusSkipped || report.Err != nil {
		t.Fatalf("expected clean skip, got %s (%v)", report.Status, report.Err)
	}
	if _, err := os.Stat(filepath.Join(dir, "empty")); !os.IsNotExist(err) {
		t.Fatalf("no output folder should be created, stat err=%v", err)
	}
	if cutter.calls.Load() != 0 {
		t.Fatal("cutter should not run")
	}
}

func TestProcessFileChapterListingFailure(t *testing.T) {
	dir := t.TempDir()
	input := testsupport.WriteInput(t, dir, "broken.m4b")
	reader := &fakeReader{errs: map[string]error{"broken.m4b": ffprobe.ErrChapters}}

	report := newSplitter(t, reader, &fakeCutter{}).ProcessFile(context.Background(), input)

	if report.Status != splitter.StatusFailed {
		t.Fatalf("expected failed, got %s", report.Status)
	}
	if !errors.Is(report.Err, splitter.ErrChapters) || !errors.Is(report.Err, ffprobe.ErrChapters) {
		t.Fatalf("expected chapter read markers, got %v", report.Err)
	}
	if _, err := os.Stat(filepath.Join(dir, "broken")); !os.IsNotExist(err) {
		t.Fatalf("no output folder should be created, stat err=%v", err)
	}
}

func TestProcessFileLockedInput(t *testing.T) {
	input := testsupport.WriteInput(t, t.TempDir(), "book.m4b")
	held := flock.New(input)
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-lock input: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{"book.m4b": chapters("A")}}
	cutter := &fakeCutter{}
	report := newSplitter(t, reader, cutter).ProcessFile(context.Background(), input)

	if report.Status != splitter.StatusFailed || !errors.Is(report.Err, splitter.ErrLocked) {
		t.Fatalf("expected locked failure, got %s (%v)", report.Status, report.Err)
	}
	if cutter.calls.Load() != 0 {
		t.Fatal("cutter should not run for a locked input")
	}

	unlocked := newSplitter(t, reader, cutter, func(o *splitter.Options) { o.LockInputs = false }).
		ProcessFile(context.Background(), input)
	if unlocked.Status != splitter.StatusCompleted {
		t.Fatalf("expected completion with locking disabled, got %s (%v)", unlocked.Status, unlocked.Err)
	}
}

func TestProcessFileDryRun(t *testing.T) {
	dir := t.TempDir()
	input := testsupport.WriteInput(t, dir, "book.m4b")
	reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{"book.m4b": chapters("Intro", "2")}}

	s, err := splitter.New(reader, nil, splitter.Options{MaxWorkers: 4, NumCPU: 4, DryRun: true})
	if err != nil {
		t.Fatalf("splitter.New: %v", err)
	}
	report := s.ProcessFile(context.Background(), input)

	if report.Status != splitter.StatusPlanned {
		t.Fatalf("expected planned, got %s", report.Status)
	}
	if len(report.Chapters) != 2 || report.Chapters[1].FileName != "Chapter_02.m4a" {
		t.Fatalf("unexpected plan: %+v", report.Chapters)
	}
	if _, err := os.Stat(filepath.Join(dir, "book")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not create folders, stat err=%v", err)
	}
}

func TestProcessFileOutputRoot(t *testing.T) {
	input := testsupport.WriteInput(t, t.TempDir(), "My: Book?.m4b")
	root := t.TempDir()
	reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{"My: Book?.m4b": chapters("Intro")}}

	report := newSplitter(t, reader, &fakeCutter{}, func(o *splitter.Options) {
		o.OutputDir = root
		o.OutputExtension = ".mp4"
	}).ProcessFile(context.Background(), input)

	if report.OutputDir != filepath.Join(root, "My Book") {
		t.Fatalf("unexpected output dir %q", report.OutputDir)
	}
	if got := testsupport.ListDir(t, report.OutputDir); !reflect.DeepEqual(got, []string{"Chapter_01_Intro.mp4"}) {
		t.Fatalf("unexpected files %v", got)
	}
}

type memoryRecorder struct {
	mu      sync.Mutex
	runIDs  []string
	reports []splitter.FileReport
}

func (m *memoryRecorder) RecordFile(_ context.Context, runID, _ string, report splitter.FileReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runIDs = append(m.runIDs, runID)
	m.reports = append(m.reports, report)
	return nil
}

func TestRunContinuesAfterFailures(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.m4b", "b.m4b", "c.m4b", "d.m4b"} {
		testsupport.WriteInput(t, dir, name)
	}
	testsupport.WriteInput(t, dir, "ignored.mp3")
	reader := &fakeReader{
		chapters: map[string][]ffprobe.Chapter{
			"a.m4b": chapters("One"),
			"c.m4b": {},
			"d.m4b": chapters("X", "Y"),
		},
		errs: map[string]error{"b.m4b": errors.New("corrupt")},
	}
	recorder := &memoryRecorder{}

	report, err := newSplitter(t, reader, &fakeCutter{}, func(o *splitter.Options) {
		o.Recorder = recorder
	}).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var statuses []splitter.FileStatus
	for _, file := range report.Files {
		statuses = append(statuses, file.Status)
	}
	want := []splitter.FileStatus{splitter.StatusCompleted, splitter.StatusFailed, splitter.StatusSkipped, splitter.StatusCompleted}
	if !reflect.DeepEqual(statuses, want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	if !report.HasFailures() {
		t.Fatal("expected run to report failures")
	}
	totals := report.Totals()
	if totals.Files != 4 || totals.ChaptersExtracted != 3 || totals.Failed != 1 || totals.Skipped != 1 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if report.RunID == "" || len(recorder.runIDs) != 4 {
		t.Fatalf("expected 4 journal entries for run %q, got %d", report.RunID, len(recorder.runIDs))
	}
	for _, id := range recorder.runIDs {
		if id != report.RunID {
			t.Fatalf("journal run id %q differs from report %q", id, report.RunID)
		}
	}
}

func TestRunWithNoInputs(t *testing.T) {
	report, err := newSplitter(t, &fakeReader{}, &fakeCutter{}).Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Files) != 0 || report.HasFailures() {
		t.Fatalf("expected empty clean report, got %+v", report)
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteInput(t, dir, "a.m4b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newSplitter(t, &fakeReader{}, &fakeCutter{}).Run(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Files) != 0 {
		t.Fatalf("no file should be processed after cancellation, got %d", len(report.Files))
	}
}

// cancelOnCut cancels the run from inside the first extraction, the way a
// SIGINT arrives while ffmpeg is working.
type cancelOnCut struct {
	cancel context.CancelFunc
}

func (c cancelOnCut) Cut(ctx context.Context, _ ffmpeg.CutRequest) ffmpeg.CutResult {
	c.cancel()
	return ffmpeg.CutResult{ExitCode: -1, Err: ctx.Err()}
}

func TestRunCancelledDuringLastFileIsJournaled(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteInput(t, dir, "book.m4b")
	reader := &fakeReader{chapters: map[string][]ffprobe.Chapter{
		"book.m4b": chapters("One", "Two"),
	}}
	store, err := journal.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	report, err := newSplitter(t, reader, cancelOnCut{cancel: cancel}, func(o *splitter.Options) {
		o.MaxWorkers = 1
		o.Recorder = store
	}).Run(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Files) != 1 || report.Files[0].Status != splitter.StatusFailed {
		t.Fatalf("unexpected report: %+v", report.Files)
	}
	if report.Finished.IsZero() {
		t.Fatal("expected finish time on interrupted report")
	}

	entries, err := store.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected the interrupted book in the journal, got %d entries", len(entries))
	}
	if entries[0].RunID != report.RunID || entries[0].Status != splitter.StatusFailed || entries[0].Failed != 2 {
		t.Fatalf("unexpected journal entry: %+v", entries[0])
	}
}

func TestRunMissingDirectory(t *testing.T) {
	_, err := newSplitter(t, &fakeReader{}, &fakeCutter{}).Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestRunWithRealToolScripts(t *testing.T) {
	tools := testsupport.NewFakeTools(t, testsupport.FakeToolsOptions{FailOutputs: "Chapter_03*", CutDelay: "0.01"})
	dir := t.TempDir()
	testsupport.WriteInput(t, dir, "book.m4b")
	testsupport.WriteInput(t, dir, "plain.m4b")
	tools.SetChapters(t, "book.m4b", testsupport.ChaptersJSON(
		[3]string{"0.000000", "10.000000", "Intro"},
		[3]string{"10.000000", "20.000000", "2"},
		[3]string{"20.000000", "30.000000", ""},
	))
	tools.SetChapters(t, "plain.m4b", `{}`)

	s := newSplitter(t, ffprobe.NewClient(tools.FFprobe), ffmpeg.NewCutter(tools.FFmpeg), func(o *splitter.Options) {
		o.NumCPU = 2
	})
	report, err := s.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Files) != 2 {
		t.Fatalf("expected 2 file reports, got %d", len(report.Files))
	}

	book := report.Files[0]
	if book.Status != splitter.StatusPartial {
		t.Fatalf("expected partial for book.m4b, got %s (%v)", book.Status, book.Err)
	}
	if book.Chapters[2].ExitCode != 3 {
		t.Fatalf("expected ffmpeg exit status 3 for chapter 3, got %d", book.Chapters[2].ExitCode)
	}
	want := []string{"Chapter_01_Intro.m4a", "Chapter_02.m4a"}
	if got := testsupport.ListDir(t, filepath.Join(dir, "book")); !reflect.DeepEqual(got, want) {
		t.Fatalf("output files = %v, want %v", got, want)
	}
	if report.Files[1].Status != splitter.StatusSkipped {
		t.Fatalf("expected plain.m4b skipped, got %s", report.Files[1].Status)
	}
	calls := tools.Calls(t)
	if len(calls) != 3 {
		t.Fatalf("expected 3 ffmpeg invocations, got %d: %v", len(calls), calls)
	}
	for _, call := range calls {
		if !strings.HasPrefix(call, "-y -i "+filepath.Join(dir, "book.m4b")+" -ss ") || !strings.Contains(call, " -c copy ") {
			t.Fatalf("unexpected ffmpeg call %q", call)
		}
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := splitter.New(nil, &fakeCutter{}, splitter.Options{MaxWorkers: 1}); err == nil {
		t.Fatal("expected error without reader")
	}
	if _, err := splitter.New(&fakeReader{}, nil, splitter.Options{MaxWorkers: 1}); err == nil {
		t.Fatal("expected error without cutter")
	}
	if _, err := splitter.New(&fakeReader{}, &fakeCutter{}, splitter.Options{}); err == nil {
		t.Fatal("expected error for zero workers")
	}
}
