package watch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs a task on a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Every registers task to run each interval and returns the job ID.
func (s *Scheduler) Every(interval time.Duration, name string, task func()) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic job: %w", err)
	}
	return job.ID().String(), nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
