package watcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/dmd-downloader/internal/config"
	"github.com/oshokin/dmd-downloader/internal/scheduling"
	"github.com/oshokin/dmd-downloader/internal/service/downloader"
)

// TestRun_InitialPass runs a pass at once and keeps running after it fails.
func TestRun_InitialPass(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var passes atomic.Int32

	err := Run(ctx, &Options{
		Pass:     &downloader.Options{Settings: config.Default()},
		Schedule: "0 0 1 1 *",
		Location: time.UTC,
		Run: func(_ context.Context) error {
			passes.Add(1)
			cancel()

			return errors.New("catalog unreachable")
		},
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), passes.Load())
}

// TestRun_SkipInitial waits for the schedule.
func TestRun_SkipInitial(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var passes atomic.Int32

	err := Run(ctx, &Options{
		Pass:        &downloader.Options{Settings: config.Default()},
		SkipInitial: true,
		Run: func(_ context.Context) error {
			passes.Add(1)
			return nil
		},
	})
	require.NoError(t, err)
	require.Zero(t, passes.Load())
}

// TestRun_InvalidSchedule rejects a bad crontab before starting.
func TestRun_InvalidSchedule(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		Pass:     &downloader.Options{Settings: config.Default()},
		Schedule: "every day",
		Run:      func(_ context.Context) error { return nil },
	})
	require.ErrorIs(t, err, scheduling.ErrInvalidCronTab)
}

// TestResolveSchedule prefers explicit values over the configuration.
func TestResolveSchedule(t *testing.T) {
	t.Parallel()

	settings := config.Default()
	require.NoError(t, config.Validate(settings))

	schedule, location, err := resolveSchedule(&Options{Pass: &downloader.Options{Settings: settings}})
	require.NoError(t, err)
	require.Equal(t, config.DefaultSchedule, schedule)
	require.Equal(t, config.DefaultTimezone, location.String())

	schedule, location, err = resolveSchedule(&Options{
		Pass:     &downloader.Options{Settings: settings},
		Schedule: " */15 * * * * ",
		Location: time.UTC,
	})
	require.NoError(t, err)
	require.Equal(t, "*/15 * * * *", schedule)
	require.Equal(t, time.UTC, location)
}
