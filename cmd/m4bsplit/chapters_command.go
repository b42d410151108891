package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"m4bsplit/internal/config"
	"m4bsplit/internal/media/ffprobe"
	"m4bsplit/internal/naming"
)

type chapterView struct {
	Index           int     `json:"index"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	DurationSeconds float64 `json:"duration_seconds"`
	Title           string  `json:"title,omitempty"`
	FileName        string  `json:"file_name"`
}

type chaptersView struct {
	Input     string        `json:"input"`
	OutputDir string        `json:"output_dir"`
	Chapters  []chapterView `json:"chapters"`
}

func newChaptersCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "chapters <file>",
		Short: "List the chapters of one audiobook and the files they would become",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve input: %w", err)
			}

			chapters, err := ffprobe.NewClient(cfg.FFprobeBinary()).Chapters(cmd.Context(), path)
			if err != nil {
				return err
			}
			view := buildChaptersView(cfg, path, chapters)

			if asJSON {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			if len(view.Chapters) == 0 {
				fmt.Fprintf(out, "No chapters found in %s\n", filepath.Base(path))
				return nil
			}
			rows := make([][]string, 0, len(view.Chapters))
			for _, ch := range view.Chapters {
				rows = append(rows, []string{
					strconv.Itoa(ch.Index),
					formatTimestamp(ch.Start),
					formatTimestamp(ch.End),
					formatClock(ch.DurationSeconds),
					ch.Title,
					ch.FileName,
				})
			}
			fmt.Fprintf(out, "%s -> %s\n", filepath.Base(path), view.OutputDir)
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Start", "End", "Length", "Title", "File"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print chapters as JSON")
	return cmd
}

func buildChaptersView(cfg *config.Config, path string, chapters []ffprobe.Chapter) chaptersView {
	root := cfg.Paths.OutputDir
	if root == "" {
		root = filepath.Dir(path)
	}
	view := chaptersView{
		Input:     path,
		OutputDir: filepath.Join(root, naming.OutputFolderName(path)),
		Chapters:  make([]chapterView, 0, len(chapters)),
	}
	for i, ch := range chapters {
		duration := ch.DurationSeconds()
		if math.IsNaN(duration) {
			duration = 0
		}
		view.Chapters = append(view.Chapters, chapterView{
			Index:           i + 1,
			Start:           ch.StartTime.String(),
			End:             ch.EndTime.String(),
			DurationSeconds: duration,
			Title:           ch.Title(),
			FileName:        naming.ChapterFileName(i+1, ch.Title(), cfg.Split.OutputExtension),
		})
	}
	return view
}
