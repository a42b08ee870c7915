package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/dmd-downloader/internal/service/watcher"
)

var (
	// schedule overrides the configured crontab.
	schedule string
	// skipInitial waits for the first scheduled time.
	skipInitial bool

	// watchCmd repeats the pass on a crontab.
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Synchronize on a schedule until stopped.",
		Long: `Run a synchronization pass on a crontab (5 fields, evaluated in the configured
timezone) until SIGINT or SIGTERM. The first pass starts immediately unless
--skip-initial is set. A failed pass is logged and does not stop the loop;
passes never overlap.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			ctx, settings, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}

			defer cleanup()

			return watcher.Run(ctx, &watcher.Options{
				Pass:        passOptions(settings, cmd.ErrOrStderr()),
				Schedule:    schedule,
				SkipInitial: skipInitial,
				Location:    settings.Location(),
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	watchCmd.Flags().StringVar(&schedule, "schedule", "", "crontab of the passes (default from configuration, \"0 6 * * *\")")
	watchCmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for the first scheduled time instead of running at once")

	rootCmd.AddCommand(watchCmd)
}
