// Package scheduler drives periodic sync runs when the server is deployed as
// a long-running service rather than a cron-invoked CLI.
package scheduler

import (
	"context"
	"time"

	"priceradar/pkg/logger"
)

// Runner is the one operation the scheduler knows how to trigger.
type Runner interface {
	Run(ctx context.Context, trigger string) error
}

type Scheduler struct {
	runner   Runner
	interval time.Duration
}

func New(runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 4 * time.Hour
	}

	return &Scheduler{runner: runner, interval: interval}
}

// Start blocks until the context is cancelled, running one sync immediately
// and then one per interval. A failed run is logged and the ticker keeps
// going; the next tick gets a fresh chance.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("scheduler started", "interval", s.interval.String())

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.runner.Run(ctx, "schedule"); err != nil {
		logger.Error("scheduled sync run failed", "error", err)
	}
}
