package collector

import (
	"context"
	"log/slog"
	"time"
)

// CollectRunner runs one full collection pass.
type CollectRunner interface {
	RunOnce(ctx context.Context) error
}

// Scheduler runs collections on a fixed interval.
type Scheduler struct {
	Runner   CollectRunner
	Interval time.Duration
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.Runner == nil || s.Interval <= 0 {
		return
	}

	// Run immediately at startup.
	if err := s.Runner.RunOnce(ctx); err != nil {
		slog.Error("initial collection failed", "err", err)
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Runner.RunOnce(ctx); err != nil {
				slog.Error("scheduled collection failed", "err", err)
			}
		}
	}
}
