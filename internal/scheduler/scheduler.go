package scheduler

import (
	"errors"
	"time"

	"github.com/fakhrymubarak/weather-board/internal/config"
	"github.com/go-co-op/gocron"
)

// Scheduler re-runs one refresh job per surface at a fixed interval.
// Jobs are tagged with the surface ID so they can be replaced or cancelled.
type Scheduler struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
}

// New creates a new Scheduler.
func New(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
	}
}

// Start starts the underlying scheduler without blocking.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Schedule arms job for surfaceID, replacing any job already armed for it.
// The first run happens one interval from now; callers look up immediately themselves.
func (s *Scheduler) Schedule(surfaceID string, job func()) error {
	s.Cancel(surfaceID)
	_, err := s.scheduler.Every(s.interval).
		WaitForSchedule().
		SingletonMode().
		Tag(surfaceID).
		Do(job)
	if err != nil {
		return err
	}
	config.GetLogger().Debugw("scheduler: refresh armed", "surface", surfaceID, "interval", s.interval)
	return nil
}

// Cancel removes the job for surfaceID, if any.
func (s *Scheduler) Cancel(surfaceID string) {
	err := s.scheduler.RemoveByTag(surfaceID)
	if err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		config.GetLogger().Warnw("scheduler: cancel failed", "surface", surfaceID, "error", err)
	}
}

// Len is the number of armed jobs.
func (s *Scheduler) Len() int {
	return s.scheduler.Len()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
