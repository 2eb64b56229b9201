// Package sched runs periodic engine maintenance: conditional-order
// rescans, stale-order expiry, daily P&L resets. Tasks have an explicit
// interval and stop through context cancellation; nothing sleeps ad
// hoc.
package sched

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runner invokes a function on a fixed interval until its context is
// cancelled. Errors are logged, not fatal: the next tick runs anyway.
type Runner struct {
	Name     string
	Interval time.Duration
	Logger   *zap.Logger
}

// Start blocks until ctx is done. Call it in a goroutine for
// background tasks.
func (r Runner) Start(ctx context.Context, fn func(context.Context) error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if r.Interval <= 0 {
		logger.Warn("runner has no interval, not starting", zap.String("task", r.Name))
		return
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("runner stopped", zap.String("task", r.Name))
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				logger.Error("periodic task failed",
					zap.String("task", r.Name),
					zap.Error(err),
				)
			}
		}
	}
}
