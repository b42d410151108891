package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"m4bsplit/internal/journal"
)

type historyEntryView struct {
	RunID      string                 `json:"run_id"`
	Input      string                 `json:"input"`
	OutputDir  string                 `json:"output_dir,omitempty"`
	Status     string                 `json:"status"`
	Chapters   int                    `json:"chapters"`
	Succeeded  int                    `json:"succeeded"`
	Failed     int                    `json:"failed"`
	Workers    int                    `json:"workers,omitempty"`
	ElapsedMS  int64                  `json:"elapsed_ms"`
	Error      string                 `json:"error,omitempty"`
	Results    []journal.ChapterEntry `json:"results,omitempty"`
	RecordedAt string                 `json:"recorded_at"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent split outcomes from the run journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, os.ErrNotExist) {
				if !cfg.Journal.Enabled {
					fmt.Fprintln(out, "Run journal is disabled; set [journal] enabled = true in the config to record history")
					return nil
				}
				fmt.Fprintf(out, "No history recorded yet (%s)\n", cfg.Journal.Path)
				return nil
			}

			store, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			runID = strings.TrimSpace(runID)
			var entries []journal.Entry
			if runID != "" {
				entries, err = store.Run(cmd.Context(), runID)
			} else {
				entries, err = store.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, historyViews(entries, runID != ""))
			}

			colorize := shouldColorize(out)
			if runID != "" {
				if len(entries) == 0 {
					return fmt.Errorf("no journal entries for run %s in %s", runID, store.Path())
				}
				writeRunHistory(out, entries, colorize)
				return nil
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "No history recorded yet")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					humanize.Time(e.RecordedAt),
					shortRunID(e.RunID),
					filepath.Base(e.Input),
					paint(string(e.Status), statusKindColor(fileStatusKind(e.Status)), colorize),
					strconv.Itoa(e.Chapters),
					strconv.Itoa(e.Failed),
					formatElapsed(e.Elapsed),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"When", "Run", "Book", "Status", "Chapters", "Failed", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show every book and chapter recorded for one run ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func historyViews(entries []journal.Entry, withResults bool) []historyEntryView {
	views := make([]historyEntryView, 0, len(entries))
	for _, e := range entries {
		view := historyEntryView{
			RunID:      e.RunID,
			Input:      e.Input,
			OutputDir:  e.OutputDir,
			Status:     string(e.Status),
			Chapters:   e.Chapters,
			Succeeded:  e.Succeeded,
			Failed:     e.Failed,
			Workers:    e.Workers,
			ElapsedMS:  e.Elapsed.Milliseconds(),
			Error:      e.Error,
			RecordedAt: e.RecordedAt.Format(time.RFC3339),
		}
		if withResults {
			view.Results = e.Results
		}
		views = append(views, view)
	}
	return views
}

// writeRunHistory prints one block per book of a run, with the chapter
// outcomes stored alongside it.
func writeRunHistory(out io.Writer, entries []journal.Entry, colorize bool) {
	first := entries[0]
	fmt.Fprintf(out, "Run %s in %s (%s)\n", first.RunID, first.WorkDir, humanize.Time(first.RecordedAt))
	for _, e := range entries {
		detail := fmt.Sprintf("%s, %d/%d chapters", e.Status, e.Succeeded, e.Chapters)
		if e.Workers > 0 {
			detail += fmt.Sprintf(", %d workers", e.Workers)
		}
		if e.Error != "" {
			detail += ": " + e.Error
		}
		fmt.Fprintln(out, renderStatusLine(filepath.Base(e.Input), fileStatusKind(e.Status), detail, colorize))
		if len(e.Results) == 0 {
			continue
		}
		rows := make([][]string, 0, len(e.Results))
		for _, ch := range e.Results {
			rows = append(rows, []string{
				strconv.Itoa(ch.Index),
				ch.FileName,
				strconv.Itoa(ch.ExitCode),
				ch.Error,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"#", "File", "Exit", "Error"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
		))
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
