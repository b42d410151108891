package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var flags splitFlags

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:   "m4bsplit [dir]",
		Short: "Split chaptered .m4b audiobooks into one file per chapter",
		Long: `m4bsplit reads the chapter markers of every .m4b audiobook in a directory
(the current directory by default) and cuts each chapter into its own .m4a
file with ffmpeg stream copy. Chapters are extracted in parallel; each book
gets a folder named after it.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, ctx, args, flags)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().IntVar(&flags.workers, "workers", 0, "Maximum concurrent extractions (overrides split.max_workers)")
	rootCmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Root for per-book folders (default: next to each book)")
	rootCmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Read chapters and print the planned layout without cutting")
	rootCmd.Flags().BoolVar(&flags.json, "json", false, "Print the run report as JSON")

	rootCmd.AddCommand(newChaptersCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
