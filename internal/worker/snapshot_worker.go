package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Snapshotter persists the current ticket collection to the snapshot cache.
type Snapshotter interface {
	SaveSnapshot(ctx context.Context) error
	Degraded() bool
	Recover(ctx context.Context) (bool, error)
}

// StartSnapshotScheduler refreshes the snapshot on schedule (cron syntax or
// "@every 5m"). While the store is degraded each run retries the backend
// instead, so a stale snapshot is never written back over itself. Stop the
// returned cron on shutdown.
func StartSnapshotScheduler(schedule string, snap Snapshotter, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if snap.Degraded() {
			if _, err := snap.Recover(ctx); err != nil {
				logger.Debug("ticket backend still unavailable", zap.Error(err))
			}
			return
		}
		if err := snap.SaveSnapshot(ctx); err != nil {
			logger.Warn("snapshot refresh failed", zap.Error(err))
			return
		}
		logger.Debug("ticket snapshot refreshed")
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
