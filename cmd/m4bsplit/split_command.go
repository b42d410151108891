package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"m4bsplit/internal/config"
	"m4bsplit/internal/journal"
	"m4bsplit/internal/media/ffmpeg"
	"m4bsplit/internal/media/ffprobe"
	"m4bsplit/internal/preflight"
	"m4bsplit/internal/splitter"
)

type splitFlags struct {
	workers   int
	outputDir string
	dryRun    bool
	json      bool
}

// errSplitFailures is returned when the run finished but some books failed
// or lost chapters, so the process exits non-zero.
var errSplitFailures = errors.New("split finished with failures")

func runSplit(cmd *cobra.Command, ctx *commandContext, args []string, flags splitFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	dir, err := resolveWorkDir(args)
	if err != nil {
		return err
	}

	opts, err := splitOptions(cfg, flags)
	if err != nil {
		return err
	}

	if err := requireTools(cmd.Context(), cfg, flags.dryRun); err != nil {
		return err
	}

	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	opts.Logger = logger

	if cfg.Journal.Enabled && !flags.dryRun {
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		opts.Recorder = store
	}

	s, err := splitter.New(
		ffprobe.NewClient(cfg.FFprobeBinary()),
		ffmpeg.NewCutter(cfg.FFmpegBinary()),
		opts,
	)
	if err != nil {
		return err
	}

	report, runErr := s.Run(cmd.Context(), dir)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	if flags.json {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else {
		writeRunReport(cmd.OutOrStdout(), report, cfg.Split.InputExtension, shouldColorize(cmd.OutOrStdout()))
	}

	if runErr != nil {
		return runErr
	}
	if report.HasFailures() {
		totals := report.Totals()
		return fmt.Errorf("%w: %d failed, %d partial of %d books", errSplitFailures, totals.Failed, totals.Partial, totals.Files)
	}
	return nil
}

func resolveWorkDir(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		dir, err := config.ExpandPath(args[0])
		if err != nil {
			return "", fmt.Errorf("resolve directory: %w", err)
		}
		return dir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return dir, nil
}

func splitOptions(cfg *config.Config, flags splitFlags) (splitter.Options, error) {
	opts := splitter.Options{
		MaxWorkers:      cfg.Split.MaxWorkers,
		NumCPU:          runtime.NumCPU(),
		OutputDir:       cfg.Paths.OutputDir,
		InputExtension:  cfg.Split.InputExtension,
		OutputExtension: cfg.Split.OutputExtension,
		LockInputs:      cfg.Split.LockInputs,
		DryRun:          flags.dryRun,
	}
	if flags.workers < 0 {
		return opts, fmt.Errorf("--workers must be positive, got %d", flags.workers)
	}
	if flags.workers > 0 {
		opts.MaxWorkers = flags.workers
	}
	if strings.TrimSpace(flags.outputDir) != "" {
		dir, err := config.ExpandPath(flags.outputDir)
		if err != nil {
			return opts, fmt.Errorf("resolve output directory: %w", err)
		}
		opts.OutputDir = dir
	}
	return opts, nil
}

// requireTools fails fast when a needed binary is missing instead of letting
// every book and chapter fail on its own.
func requireTools(ctx context.Context, cfg *config.Config, dryRun bool) error {
	var missing []string
	for _, result := range preflight.CheckTools(ctx, cfg) {
		if result.Passed {
			continue
		}
		if dryRun && result.Name == "ffmpeg" {
			continue
		}
		missing = append(missing, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools unavailable (%s); run `m4bsplit check` for details", strings.Join(missing, "; "))
	}
	return nil
}
