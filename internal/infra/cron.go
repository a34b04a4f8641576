package infra

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// SweepFunc runs one periodic maintenance pass.
type SweepFunc func(ctx context.Context) error

// NewSweepScheduler builds a cron scheduler running the deadline sweep on
// the configured spec. The sweep backstops the in-process gate: any window
// a crashed or partitioned instance failed to close gets closed here.
func NewSweepScheduler(spec string, sweep SweepFunc, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := sweep(context.Background()); err != nil {
			logger.Error("deadline sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
