package presence

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the idle sweep on a fixed period.
type Scheduler struct {
	Engine *Engine
	Period time.Duration
	Logger *zap.Logger
}

// Tick runs one sweep synchronously.
func (s *Scheduler) Tick(ctx context.Context) ([]Transition, error) {
	return s.Engine.Sweep(ctx)
}

// Run sweeps every Period until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	period := s.Period
	if period <= 0 {
		period = 30 * time.Second
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	logger.Info("presence scheduler started", zap.Duration("period", period))

	for {
		select {
		case <-ctx.Done():
			logger.Info("presence scheduler stopped")
			return nil
		case <-ticker.C:
			transitions, err := s.Tick(ctx)
			if err != nil {
				logger.Warn("presence sweep finished with errors", zap.Error(err))
			}
			if len(transitions) > 0 {
				logger.Info("presence sweep", zap.Int("demoted", len(transitions)))
			}
		}
	}
}
