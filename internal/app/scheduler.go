package app

import (
	"context"
	"log/slog"
	"time"
)

// RequestExpirer marks overdue payment requests as expired.
type RequestExpirer interface {
	ExpireRequests(ctx context.Context) (int, error)
}

// Scheduler runs the payment-request expiry sweep on a fixed interval.
type Scheduler struct {
	expirer  RequestExpirer
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(expirer RequestExpirer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}

	return &Scheduler{expirer: expirer, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("expiry sweeper started", "interval", s.interval)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return nil
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	n, err := s.expirer.ExpireRequests(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("payment request sweep failed", "expired", n, "error", err)
		}
		return
	}

	if n > 0 {
		s.logger.Info("payment requests expired", "count", n)
	}
}
