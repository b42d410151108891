package main

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"m4bsplit/internal/splitter"
)

func writeRunReport(out io.Writer, report splitter.RunReport, inputExt string, colorize bool) {
	if len(report.Files) == 0 {
		fmt.Fprintf(out, "No %s files found in %s\n", inputExt, report.WorkDir)
		return
	}

	if report.DryRun {
		for _, file := range report.Files {
			writePlan(out, file, colorize)
		}
	}

	rows := make([][]string, 0, len(report.Files))
	for _, file := range report.Files {
		rows = append(rows, []string{
			filepath.Base(file.Input),
			paint(string(file.Status), statusKindColor(fileStatusKind(file.Status)), colorize),
			strconv.Itoa(len(file.Chapters)),
			strconv.Itoa(file.Succeeded),
			strconv.Itoa(file.Failed),
			displayOutputDir(file),
			formatElapsed(file.Elapsed),
		})
	}
	totals := report.Totals()
	footer := []string{
		fmt.Sprintf("%d books", totals.Files),
		"",
		strconv.Itoa(totals.Chapters),
		strconv.Itoa(totals.ChaptersExtracted),
		strconv.Itoa(totals.ChaptersFailed),
		"",
		formatElapsed(report.Finished.Sub(report.Started)),
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Book", "Status", "Chapters", "OK", "Failed", "Output", "Elapsed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight},
		footer...,
	))

	for _, file := range report.Files {
		if file.Error == "" {
			continue
		}
		kind := statusError
		if file.Status == splitter.StatusPartial {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(filepath.Base(file.Input), kind, file.Error, colorize))
		for _, ch := range file.Chapters {
			if ch.Error != "" {
				fmt.Fprintln(out, renderStatusLine("  "+ch.FileName, kind, ch.Error, colorize))
			}
		}
	}
}

func writePlan(out io.Writer, file splitter.FileReport, colorize bool) {
	if file.Status != splitter.StatusPlanned {
		return
	}
	fmt.Fprintln(out, paint(fmt.Sprintf("%s -> %s (%d workers)", filepath.Base(file.Input), file.OutputDir, file.Workers), ansiBlue, colorize))
	rows := make([][]string, 0, len(file.Chapters))
	for _, ch := range file.Chapters {
		rows = append(rows, []string{
			strconv.Itoa(ch.Index),
			formatTimestamp(ch.Start),
			formatTimestamp(ch.End),
			ch.FileName,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Start", "End", "File"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
	))
}

func displayOutputDir(file splitter.FileReport) string {
	if file.OutputDir == "" {
		return "-"
	}
	return file.OutputDir
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// formatTimestamp renders decimal seconds as H:MM:SS.mmm, falling back to the
// raw value when it is not a number.
func formatTimestamp(raw string) string {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(seconds) || seconds < 0 {
		if raw == "" {
			return "?"
		}
		return raw
	}
	return formatClock(seconds)
}

func formatClock(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		return "?"
	}
	totalMillis := int64(math.Round(seconds * 1000))
	hours := totalMillis / 3_600_000
	minutes := (totalMillis / 60_000) % 60
	secs := (totalMillis / 1000) % 60
	millis := totalMillis % 1000
	return fmt.Sprintf("%d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
