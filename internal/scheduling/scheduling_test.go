package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/dmd-downloader/internal/logger"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	scheduler, err := NewScheduler(context.Background(), time.UTC)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = scheduler.Shutdown()
	})

	return scheduler
}

func TestSchedulerStartup(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(t)
	require.Empty(t, scheduler.jobs, "Scheduler should have no registered jobs after creation")
}

func TestSchedulerUsage(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(t)
	noop := func(_ context.Context) error { return nil }

	// Register the first job.
	firstJob := JobName("first_job")
	require.NoError(t, scheduler.RegisterJob(firstJob, "* * * * *", false, noop))
	require.Len(t, scheduler.jobs, 1)
	require.Contains(t, scheduler.jobs, firstJob)

	// Register the second job.
	secondJob := JobName("second_job")
	require.NoError(t, scheduler.RegisterJob(secondJob, "*/5 * * * *", false, noop))
	require.Len(t, scheduler.jobs, 2)
	require.Contains(t, scheduler.jobs, secondJob)

	// Update the first job.
	require.NoError(t, scheduler.RegisterJob(firstJob, "0 2 * * 1", false, noop))
	require.Len(t, scheduler.jobs, 2)
	require.Contains(t, scheduler.jobs, firstJob)

	_, err := scheduler.NextRun(JobName("missing"))
	require.ErrorIs(t, err, ErrUnknownJob)
}

func TestCrontabValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		crontab  string
		expected error
	}{
		{name: "Valid standard cron", crontab: "0 6 * * *"},
		{name: "Too few fields", crontab: "0 0 * *", expected: ErrInvalidCronTab},
		{name: "Too many fields", crontab: "0 0 * * * *", expected: ErrInvalidCronTab},
		{name: "Non-numeric characters", crontab: "a b c d e", expected: ErrInvalidCronTab},
		{name: "Empty string", crontab: "", expected: ErrInvalidCronTab},
		{name: "Only whitespace", crontab: "     ", expected: ErrInvalidCronTab},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			scheduler := newTestScheduler(t)

			err := scheduler.RegisterJob(JobName("test"), tc.crontab, false, func(_ context.Context) error { return nil })
			if tc.expected == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tc.expected)
		})
	}
}

// TestRunNow runs the job once on start with the base logger in its context.
func TestRunNow(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	base := logger.ToContext(context.Background(), zap.New(core).Sugar())

	scheduler, err := NewScheduler(base, time.UTC)
	require.NoError(t, err)

	ran := make(chan struct{}, 1)

	err = scheduler.RegisterJob(JobName("sync"), "0 0 1 1 *", true, func(ctx context.Context) error {
		logger.Info(ctx, "inside job")

		select {
		case ran <- struct{}{}:
		default:
		}

		return errors.New("pass failed")
	})
	require.NoError(t, err)

	scheduler.Start()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Error running periodic job").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, scheduler.Shutdown())
	require.Equal(t, 1, logs.FilterMessage("inside job").Len())
}

// TestNextRun reports the next due time in the scheduler timezone.
func TestNextRun(t *testing.T) {
	t.Parallel()

	dhaka, err := time.LoadLocation("Asia/Dhaka")
	require.NoError(t, err)

	scheduler, err := NewScheduler(context.Background(), dhaka)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = scheduler.Shutdown()
	})

	require.NoError(t, scheduler.RegisterJob(JobName("yearly"), "0 6 1 1 *", false, func(_ context.Context) error { return nil }))

	scheduler.Start()

	var next time.Time

	require.Eventually(t, func() bool {
		next, err = scheduler.NextRun(JobName("yearly"))
		return err == nil && !next.IsZero()
	}, 5*time.Second, 10*time.Millisecond)

	next = next.In(dhaka)
	require.Equal(t, time.January, next.Month())
	require.Equal(t, 1, next.Day())
	require.Equal(t, 6, next.Hour())
}
