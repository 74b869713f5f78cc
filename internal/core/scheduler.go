package core

// scheduler.go keeps cached record sets fresh in the background.
//
// Every interval the scheduler refetches each entity that has been loaded
// at least once, then runs the registered maintenance hooks (the web layer
// uses one to purge idle column sessions). Individual failures are logged
// and never stop the loop.

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// refreshConcurrency bounds the entities refetched at once per cycle.
const refreshConcurrency = 4

// MaintenanceHook runs after every refresh cycle.
type MaintenanceHook func(ctx context.Context)

// StartRefreshScheduler runs until ctx is cancelled.
func (s *Service) StartRefreshScheduler(ctx context.Context, interval time.Duration, hooks ...MaintenanceHook) {
	if interval <= 0 {
		slog.Warn("refresh scheduler disabled", "interval", interval)
		return
	}
	slog.Info("refresh scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			s.runRefreshCycle(ctx)
			for _, hook := range hooks {
				hook(ctx)
			}
		}
	}
}

// runRefreshCycle refetches every entity that has loaded before.
func (s *Service) runRefreshCycle(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	loaders := make([]*Loader, 0, len(s.loaders))
	for _, l := range s.loaders {
		if l.Loaded() {
			loaders = append(loaders, l)
		}
	}
	s.mu.Unlock()

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, l := range loaders {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if _, err := l.Load(gctx); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return
	}

	slog.Debug("refresh cycle completed",
		"entities", len(loaders),
		"failed", failed.Load(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
