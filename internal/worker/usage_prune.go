package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/openedu/educache/internal/storage"
)

// UsagePruneWorker deletes usage records older than the retention window.
type UsagePruneWorker struct {
	store     storage.UsageStore
	interval  time.Duration
	retention time.Duration
}

// NewUsagePruneWorker creates a new prune worker.
func NewUsagePruneWorker(store storage.UsageStore, interval, retention time.Duration) *UsagePruneWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &UsagePruneWorker{store: store, interval: interval, retention: retention}
}

// Name returns the worker identifier.
func (w *UsagePruneWorker) Name() string { return "usage_prune" }

// Run prunes aged usage records on a periodic schedule.
func (w *UsagePruneWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.prune(ctx)
		}
	}
}

func (w *UsagePruneWorker) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.retention)
	removed, err := w.store.PruneUsage(ctx, cutoff)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "usage prune failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if removed > 0 {
		slog.Info("usage records pruned", "removed", removed, "cutoff", cutoff)
	}
}
