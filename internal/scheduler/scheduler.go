// Package scheduler runs the periodic dataset refresh.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/firewatch-analytics/internal/service"
)

// Refresher is the service surface the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context, days int) (*service.RefreshReport, error)
}

// Scheduler triggers a refresh at a fixed interval. A zero interval
// disables it.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	days      int
	logger    *slog.Logger
}

// New creates a scheduler driving refresher every interval for the given
// number of recent days.
func New(refresher Refresher, interval time.Duration, days int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		interval:  interval,
		days:      days,
		logger:    logger,
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("periodic refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()

		report, err := s.refresher.Refresh(ctx, s.days)
		switch {
		case errors.Is(err, service.ErrRefreshInProgress):
			s.logger.Warn("scheduled refresh skipped, another load running")
		case err != nil:
			s.logger.Error("scheduled refresh failed", "error", err)
		default:
			s.logger.Info("scheduled refresh complete",
				"added", report.Added, "total", report.Total,
				"failed_windows", len(report.Windows.Failed))
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("periodic refresh scheduled", "interval", s.interval, "days", s.days)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
