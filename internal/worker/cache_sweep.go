package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/openedu/educache/internal/cache"
	"github.com/openedu/educache/internal/telemetry"
)

// CacheSweeper periodically deletes expired cache entries and enforces the
// size budget. The sweep bounds growth from keys written once and never read
// again; read-time expiry checks alone cannot reclaim those.
type CacheSweeper struct {
	mgr      *cache.Manager
	interval time.Duration
	metrics  *telemetry.Metrics // optional
}

// NewCacheSweeper creates a sweeper over the cache manager.
func NewCacheSweeper(mgr *cache.Manager, interval time.Duration, metrics *telemetry.Metrics) *CacheSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CacheSweeper{mgr: mgr, interval: interval, metrics: metrics}
}

// Name returns the worker identifier.
func (s *CacheSweeper) Name() string { return "cache_sweep" }

// Run sweeps on a periodic schedule until ctx is cancelled.
func (s *CacheSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *CacheSweeper) sweep(ctx context.Context) {
	removed, err := s.mgr.RemoveExpired(ctx, time.Now())
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "cache sweep failed",
			slog.String("error", err.Error()),
		)
		return
	}

	// Size eviction is an independent trigger from TTL expiry; running it
	// after the sweep just reuses the tick.
	evicted, err := s.mgr.EvictIfOverBudget(ctx)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "cache eviction failed",
			slog.String("error", err.Error()),
		)
		return
	}

	if s.metrics != nil {
		st := s.mgr.Stats(ctx)
		s.metrics.CacheEntries.Set(float64(st.Entries))
		s.metrics.CacheBytes.Set(float64(st.TotalBytes))
	}
	if removed > 0 || evicted > 0 {
		slog.Info("cache sweep completed", "expired", removed, "evicted", evicted)
	}
}
