package main

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"m4bsplit/internal/preflight"
)

var errPreflightFailed = errors.New("preflight checks failed")

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Verify ffprobe/ffmpeg and the directories a split will use",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir, err := resolveWorkDir(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			configDetail := ctx.configPath
			if !ctx.configExists {
				configDetail += " (not found, using defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configDetail, colorize))
			workers := cfg.Workers(runtime.NumCPU())
			fmt.Fprintln(out, renderStatusLine("Workers", statusInfo,
				fmt.Sprintf("%s (max_workers %d, %d CPUs)", strconv.Itoa(workers), cfg.Split.MaxWorkers, runtime.NumCPU()), colorize))

			results := preflight.RunAll(cmd.Context(), cfg, dir)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			if !preflight.Passed(results) {
				return errPreflightFailed
			}
			return nil
		},
	}
}
