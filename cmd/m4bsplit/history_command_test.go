package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"m4bsplit/internal/testsupport"
)

func TestHistoryAfterSplit(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeToolsOptions{FailOutputs: "Chapter_03*"})
	env.addBook(t, "book.m4b", bookChapters...)

	if _, _, err := runCLI(t, []string{env.workDir}, env.configPath); err == nil {
		t.Fatal("expected partial split to return an error")
	}

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "book.m4b")
	requireContains(t, out, "partial")

	out, _, err = runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	var entries []historyEntryView
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %+v", entries)
	}
	if entries[0].Status != "partial" || entries[0].Succeeded != 2 || entries[0].Failed != 1 || entries[0].RunID == "" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if len(entries[0].Results) != 0 {
		t.Fatalf("recent listing should omit chapter results, got %+v", entries[0].Results)
	}
}

func TestHistoryRunDetail(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeToolsOptions{FailOutputs: "Chapter_03*"})
	env.addBook(t, "book.m4b", bookChapters...)
	env.addBook(t, "other.m4b", [3]string{"0", "10", "Only"})

	if _, _, err := runCLI(t, []string{env.workDir}, env.configPath); err == nil {
		t.Fatal("expected partial split to return an error")
	}
	out, _, err := runCLI(t, []string{"history", "--json", "--limit", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	var recent []historyEntryView
	if err := json.Unmarshal([]byte(out), &recent); err != nil || len(recent) != 1 {
		t.Fatalf("decode recent: %v\n%s", err, out)
	}
	runID := recent[0].RunID

	out, _, err = runCLI(t, []string{"history", "--run", runID}, env.configPath)
	if err != nil {
		t.Fatalf("history --run: %v", err)
	}
	requireContains(t, out, "Run "+runID)
	requireContains(t, out, "partial, 2/3 chapters")
	requireContains(t, out, "completed, 1/1 chapters")
	requireContains(t, out, "Chapter_03.m4a")
	requireContains(t, out, "Chapter_01_Only.m4a")

	out, _, err = runCLI(t, []string{"history", "--run", runID, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history --run --json: %v", err)
	}
	var run []historyEntryView
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("decode run: %v\n%s", err, out)
	}
	if len(run) != 2 || run[0].Input != filepath.Join(env.workDir, "book.m4b") {
		t.Fatalf("expected both books in processing order, got %+v", run)
	}
	results := run[0].Results
	if len(results) != 3 || results[2].ExitCode != 3 || results[2].Error == "" || results[0].Error != "" {
		t.Fatalf("unexpected chapter results: %+v", results)
	}
	if run[0].Workers < 1 {
		t.Fatalf("expected worker count to be recorded, got %d", run[0].Workers)
	}
}

func TestHistoryUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeToolsOptions{})
	env.addBook(t, "book.m4b", bookChapters...)
	if _, _, err := runCLI(t, []string{env.workDir}, env.configPath); err != nil {
		t.Fatalf("split: %v", err)
	}

	_, _, err := runCLI(t, []string{"history", "--run", "does-not-exist"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
	requireContains(t, err.Error(), "does-not-exist")
	requireContains(t, err.Error(), env.cfg.Journal.Path)
}

func TestHistorySkipsDryRuns(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeToolsOptions{})
	env.addBook(t, "book.m4b", bookChapters...)

	if _, _, err := runCLI(t, []string{env.workDir, "--dry-run"}, env.configPath); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No history recorded yet")
}

func TestHistoryJournalDisabled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeToolsOptions{})
	env.cfg.Journal.Enabled = false
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Run journal is disabled")
}

func TestShortRunID(t *testing.T) {
	if got := shortRunID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("shortRunID = %q", got)
	}
	if got := shortRunID("abc"); got != "abc" {
		t.Fatalf("shortRunID short = %q", got)
	}
}
