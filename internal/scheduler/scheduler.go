package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"forecastd/internal/forecast"
)

// Scheduler is the recurring trigger: on each tick it asks the coordinator
// to refresh. The coordinator dispatches the fetch and the job returns
// immediately; retry and backoff of the cadence itself are the scheduler's
// concern, not the job's.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	coordinator *forecast.Coordinator
	interval    time.Duration
}

// New creates a new Scheduler.
func New(interval time.Duration, coordinator *forecast.Coordinator) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:   s,
		coordinator: coordinator,
		interval:    interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 3 * time.Hour
	}

	// SingletonMode stands in for the OS facility's replace-existing
	// behavior: a tick never piles onto a still-running predecessor.
	_, err := s.scheduler.Every(interval).SingletonMode().Do(func() {
		log.Println("scheduler: dispatching periodic forecast refresh")
		s.coordinator.HandlePeriodicTrigger()
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
