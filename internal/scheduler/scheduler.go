package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is what every tick runs
type Job func(ctx context.Context)

// Scheduler fires a job at fixed wall clock times every day
type Scheduler struct {
	cron   *cron.Cron
	times  []string
	logger *zap.Logger
}

// CronSpec converts an HH:MM time of day into a daily cron expression.
func CronSpec(clock string) (string, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "", fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// New registers job at every time of day in times, evaluated in location.
func New(times []string, location *time.Location, job Job, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(location))

	for _, clock := range times {
		spec, err := CronSpec(clock)
		if err != nil {
			return nil, err
		}
		clock := clock
		if _, err := c.AddFunc(spec, func() {
			logger.Info("Scheduled run starting", zap.String("time", clock))
			job(context.Background())
		}); err != nil {
			return nil, fmt.Errorf("scheduling %s: %w", clock, err)
		}
		logger.Info("Scheduled daily run", zap.String("time", clock), zap.String("cron", spec), zap.String("timezone", location.String()))
	}

	return &Scheduler{cron: c, times: times, logger: logger}, nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops future ticks. The returned context is done once running jobs
// have returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the earliest upcoming tick, or the zero time when the
// scheduler is not running.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, entry := range s.cron.Entries() {
		if entry.Next.IsZero() {
			continue
		}
		if next.IsZero() || entry.Next.Before(next) {
			next = entry.Next
		}
	}
	return next
}

// Times returns the configured times of day.
func (s *Scheduler) Times() []string {
	return s.times
}
