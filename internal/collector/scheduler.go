package collector

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler drives the collection loop: one tick per minute, each tick asking
// the driver whether anything is due. The driver's in-flight guard absorbs
// ticks that land while a cycle is still running.
type Scheduler struct {
	Driver   *Driver
	Logger   *slog.Logger
	Interval time.Duration
}

func NewScheduler(driver *Driver, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		Driver:   driver,
		Logger:   logger,
		Interval: time.Minute,
	}
}

// Start runs the tick loop in a goroutine until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		s.Logger.Info("Collection scheduler started", "tick", s.Interval)
		for {
			select {
			case <-ticker.C:
				result := s.Driver.RunCycle(ctx, time.Now())
				if result.Skipped && result.SkipReason != "no group due" && result.SkipReason != "outside operating hours" {
					s.Logger.Info("Cycle skipped", "reason", result.SkipReason)
				}
			case <-ctx.Done():
				s.Logger.Info("Collection scheduler stopped")
				return
			}
		}
	}()
}
