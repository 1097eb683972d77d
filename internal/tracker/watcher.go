package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Watch refreshes prices and checks the notification threshold once
// immediately and then on every tick until ctx is cancelled.
func (s *Service) Watch(ctx context.Context, interval time.Duration) error {
	if s.quotes == nil {
		return ErrNoQuoteClient
	}
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", interval)
	}

	s.logger.Info("Starting watch loop", zap.Duration("interval", interval))
	s.watchOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping watch loop...")
			return nil
		case <-ticker.C:
			s.watchOnce(ctx)
		}
	}
}

// watchOnce performs a single refresh and threshold check. Errors are logged
// so that one bad cycle does not stop the loop.
func (s *Service) watchOnce(ctx context.Context) (Notification, bool) {
	if _, err := s.RefreshPrices(ctx); err != nil {
		if ctx.Err() != nil {
			return Notification{}, false
		}
		s.logger.Error("Price refresh failed", zap.Error(err))
	}

	n, err := s.checkNotifications("watch", s.DefaultThreshold())
	if errors.Is(err, ErrEmptyPortfolio) {
		s.logger.Info("Portfolio is empty, nothing to check")
		return Notification{}, false
	}
	if err != nil {
		s.logger.Error("Threshold check failed", zap.Error(err))
		return Notification{}, false
	}

	l := s.logger.With(
		zap.Stringer("total_profit_loss", n.TotalProfitLoss),
		zap.Stringer("threshold", n.Threshold),
	)
	if n.Exceeded {
		l.Warn(n.Message)
	} else {
		l.Info(n.Message)
	}
	return n, true
}
