package services

import (
	"context"
	"time"
)

// Sweep deletes every paste that has expired by now and returns how many were removed
func (s *PasteService) Sweep(ctx context.Context) (int64, error) {
	c, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := s.store.DeleteExpired(c, s.now().UTC())
	if err != nil {
		s.metrics.StoreError("sweep")
		s.logger.Error("Expired paste sweep failed", "op", "sweep", "error", err)
		return 0, persistenceError("Error sweeping expired pastes", err)
	}
	s.metrics.PastesSwept(removed)
	if removed > 0 {
		s.logger.Info("Swept expired pastes", "count", removed)
	}
	return removed, nil
}

// StartSweeper runs Sweep every interval until ctx is cancelled. The read path
// purges lazily, so the sweep only reclaims rows nobody asks for.
func (s *PasteService) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = s.Sweep(ctx)
			}
		}
	}()
	return done
}
