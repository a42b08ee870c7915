package watcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/dmd-downloader/internal/config"
	"github.com/oshokin/dmd-downloader/internal/logger"
	"github.com/oshokin/dmd-downloader/internal/scheduling"
	"github.com/oshokin/dmd-downloader/internal/service/downloader"
)

// JobName is the scheduler name of the synchronization pass.
const JobName scheduling.JobName = "synchronize"

// PassFunc runs one synchronization pass.
type PassFunc func(ctx context.Context) error

// Options controls the watch loop.
type Options struct {
	// Pass holds the inputs of every scheduled pass.
	Pass *downloader.Options
	// Schedule overrides the configured crontab.
	Schedule string
	// SkipInitial waits for the first scheduled time instead of running at once.
	SkipInitial bool
	// Location is the timezone the crontab is evaluated in. Defaults to the configured one.
	Location *time.Location
	// Run replaces the pass, used in tests. Defaults to downloader.Run with Pass.
	Run PassFunc
}

// Run repeats synchronization passes on the schedule until ctx is canceled.
// A failed pass is logged and the next one still runs on time.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "watch")

	if opts.Pass == nil {
		opts.Pass = &downloader.Options{}
	}

	// Resolve schedule and timezone: flags override the configuration.
	schedule, location, err := resolveSchedule(opts)
	if err != nil {
		return err
	}

	pass := opts.Run
	if pass == nil {
		pass = func(jobCtx context.Context) error {
			return downloader.Run(jobCtx, opts.Pass)
		}
	}

	scheduler, err := scheduling.NewScheduler(ctx, location)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	if err = scheduler.RegisterJob(JobName, schedule, !opts.SkipInitial, scheduling.JobFunc(pass)); err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("register %s: %w", JobName, err)
	}

	scheduler.Start()

	logger.InfoKV(ctx, "Watching catalog for new releases",
		"schedule", schedule, "timezone", location.String(), "run_now", !opts.SkipInitial)

	if next, nextErr := scheduler.NextRun(JobName); nextErr == nil && !next.IsZero() {
		logger.InfoKV(ctx, "Next synchronization", "at", next.In(location).Format(downloader.TimestampLayout))
	}

	// Block until the process is asked to stop.
	<-ctx.Done()

	logger.Info(ctx, "Context canceled, stopping scheduler")

	if err = scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}

	return nil
}

// resolveSchedule picks the crontab and timezone for the watch loop.
func resolveSchedule(opts *Options) (string, *time.Location, error) {
	schedule := strings.TrimSpace(opts.Schedule)
	location := opts.Location

	if schedule != "" && location != nil {
		return schedule, location, nil
	}

	settings := opts.Pass.Settings
	if settings == nil {
		var err error

		settings, err = config.Load(opts.Pass.ConfigPath)
		if err != nil {
			return "", nil, fmt.Errorf("load configuration: %w", err)
		}
	}

	if schedule == "" {
		schedule = settings.Schedule
	}

	if location == nil {
		location = settings.Location()
	}

	return schedule, location, nil
}
