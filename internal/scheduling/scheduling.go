package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/oshokin/dmd-downloader/internal/logger"
)

// JobName represents the name of a periodic job.
type JobName string

// JobFunc represents the type of function that executes a scheduled job.
type JobFunc func(context.Context) error

var (
	// ErrInvalidCronTab is returned when an invalid crontab expression is provided.
	ErrInvalidCronTab = errors.New("invalid crontab expression")

	// ErrUnknownJob is returned when a job name was never registered.
	ErrUnknownJob = errors.New("unknown job")
)

// Scheduler runs registered jobs on crontab schedules in a fixed timezone.
// A job never overlaps with itself; a run that is still going when the next
// one is due postpones the next run.
type Scheduler struct {
	// base carries the logger handed to every job execution.
	base      context.Context
	location  *time.Location
	jobs      map[JobName]uuid.UUID
	scheduler gocron.Scheduler
}

// NewScheduler creates a scheduler evaluating crontabs in location.
// Jobs receive the logger stored in ctx.
func NewScheduler(ctx context.Context, location *time.Location) (*Scheduler, error) {
	if location == nil {
		location = time.UTC
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(location))
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		base:      ctx,
		location:  location,
		jobs:      map[JobName]uuid.UUID{},
		scheduler: scheduler,
	}, nil
}

// RegisterJob registers a job in the Scheduler.
//
// If the job does not exist, it is created. If it already exists, it is updated.
// With runNow the job also runs as soon as the scheduler starts.
func (s *Scheduler) RegisterJob(name JobName, crontab string, runNow bool, jobFunc JobFunc) error {
	cron := gocron.NewDefaultCron(false)

	if err := cron.IsValid(crontab, s.location, time.Now()); err != nil {
		return fmt.Errorf("%q: %w", crontab, ErrInvalidCronTab)
	}

	options := []gocron.JobOption{
		gocron.WithName(string(name)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}

	if runNow {
		options = append(options, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	task := gocron.NewTask(s.wrapJob(name, jobFunc))

	id, ok := s.jobs[name]
	if ok {
		if _, err := s.scheduler.Update(id, gocron.CronJob(crontab, false), task, options...); err != nil {
			return err
		}

		return nil
	}

	job, err := s.scheduler.NewJob(gocron.CronJob(crontab, false), task, options...)
	if err != nil {
		return err
	}

	s.jobs[name] = job.ID()

	return nil
}

// NextRun returns the next time the named job is due.
func (s *Scheduler) NextRun(name JobName) (time.Time, error) {
	id, ok := s.jobs[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %w", name, ErrUnknownJob)
	}

	for _, job := range s.scheduler.Jobs() {
		if job.ID() == id {
			return job.NextRun()
		}
	}

	return time.Time{}, fmt.Errorf("%s: %w", name, ErrUnknownJob)
}

// Start starts the scheduler and its registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Shutdown shuts down the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) wrapJob(name JobName, jobFunc JobFunc) func(context.Context) {
	return func(ctx context.Context) {
		select {
		// If the context is already cancelled, don't start the job.
		case <-ctx.Done():
			return

		default:
			ctx = logger.ToContext(ctx, logger.FromContext(s.base))

			logger.InfoKV(ctx, "Executing periodic job", "job", string(name))

			if err := jobFunc(ctx); err != nil {
				logger.ErrorKV(ctx, "Error running periodic job", "job", string(name), "error", err)
			}
		}
	}
}
