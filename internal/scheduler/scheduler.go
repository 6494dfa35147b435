package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// DefaultJobTimeout bounds a single refresh run
const DefaultJobTimeout = 30 * time.Minute

// Job is the periodic work, typically a dataset refresh
type Job func(ctx context.Context) error

// Scheduler runs a job at a fixed interval
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       Job
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(interval time.Duration, job Job, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		job:       job,
		interval:  interval,
		timeout:   DefaultJobTimeout,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens one interval after Start. A non-positive interval
// schedules nothing.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("refresh scheduled", "interval", s.interval.String())
	return nil
}

func (s *Scheduler) run() {
	s.logger.Info("running refresh job")
	started := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.job(ctx); err != nil {
		s.logger.Error("refresh job failed", "error", err, "duration", time.Since(started).String())
		return
	}
	s.logger.Info("refresh job completed", "duration", time.Since(started).String())
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// IsRunning reports whether the underlying scheduler is active
func (s *Scheduler) IsRunning() bool {
	return s.scheduler.IsRunning()
}
