package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
)

type syncTrigger interface {
	Trigger(ctx context.Context, date time.Time, source string) (*models.SyncJob, error)
}

// newScheduler registers the periodic sync. An empty schedule disables it and
// returns nil.
func newScheduler(schedule string, trigger syncTrigger, logger *zap.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := trigger.Trigger(context.Background(), time.Now(), "cron"); err != nil {
			logger.Sugar().Errorw("scheduled sync not queued", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_CRON %q: %w", schedule, err)
	}
	return c, nil
}
