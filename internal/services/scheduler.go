package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
)

// DailyJob runs once a day at Hour:Minute in the scheduler's location.
type DailyJob struct {
	Name   string
	Hour   int
	Minute int
	Run    func(ctx context.Context) error
}

// NextRun returns the first occurrence of hour:minute strictly after now.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Scheduler fires each job at its daily time until the context ends.
type Scheduler struct {
	jobs     []DailyJob
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
	after    func(d time.Duration) <-chan time.Time
	wg       sync.WaitGroup
}

func NewScheduler(location *time.Location, logger *slog.Logger, jobs ...DailyJob) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:     jobs,
		location: location,
		logger:   logger,
		now:      time.Now,
		after:    time.After,
	}
}

// Start launches one goroutine per job.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, job)
		}()
	}
}

// Wait blocks until every job loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job DailyJob) {
	for {
		next := NextRun(s.now(), job.Hour, job.Minute, s.location)
		s.logger.Info("job scheduled", "module", "scheduler", "job", job.Name, "next_run", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return
		case <-s.after(time.Until(next)):
		}
		s.runOnce(ctx, job)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job DailyJob) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked", "module", "scheduler", "job", job.Name, "error", r)
		}
	}()

	start := time.Now()
	err := job.Run(ctx)
	switch {
	case errors.Is(err, models.ErrJobRunning):
		s.logger.Info("scheduled job skipped, already running elsewhere", "module", "scheduler", "job", job.Name)
	case err != nil:
		s.logger.Error("scheduled job failed", "module", "scheduler", "job", job.Name, "outcome", "failure", "error", err.Error())
	default:
		s.logger.Info("scheduled job completed", "module", "scheduler", "job", job.Name, "outcome", "success",
			"duration", time.Since(start).String())
	}
}
