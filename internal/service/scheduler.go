package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler periodically sweeps for due reports and triggers their runs.
type Scheduler struct {
	lifecycle *Lifecycle
	interval  time.Duration
}

// NewScheduler creates the due-run sweeper
func NewScheduler(lifecycle *Lifecycle, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{lifecycle: lifecycle, interval: interval}
}

// Run sweeps until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	zap.L().Info("Scheduler started",
		zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Scheduler stopped")
			return
		case now := <-ticker.C:
			runs, err := s.lifecycle.TriggerDueRuns(ctx, now)
			if err != nil {
				zap.L().Error("Due-run sweep failed", zap.Error(err))
				continue
			}
			if len(runs) > 0 {
				zap.L().Info("Due-run sweep finished",
					zap.Int("runs_started", len(runs)))
			}
		}
	}
}
