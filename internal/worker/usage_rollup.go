package worker

import (
	"context"
	"log/slog"
	"time"

	educache "github.com/openedu/educache/internal"
	"github.com/openedu/educache/internal/storage"
)

// UsageRollupWorker periodically aggregates raw usage records into hourly rollups.
type UsageRollupWorker struct {
	store    storage.UsageStore
	interval time.Duration
}

// NewUsageRollupWorker creates a new rollup worker.
func NewUsageRollupWorker(store storage.UsageStore, interval time.Duration) *UsageRollupWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &UsageRollupWorker{store: store, interval: interval}
}

// Name returns the worker identifier.
func (w *UsageRollupWorker) Name() string { return "usage_rollup" }

// Run aggregates usage records into hourly rollups on a periodic schedule.
func (w *UsageRollupWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.rollup(ctx)
		}
	}
}

func (w *UsageRollupWorker) rollup(ctx context.Context) {
	// Recompute the two previous full hours plus the current partial hour.
	// Buckets are rebuilt from the raw records on every pass and the upsert
	// replaces, so re-rolling never double-counts; late-arriving flushes are
	// picked up as long as their bucket is still inside the window.
	now := time.Now().UTC()
	since := now.Truncate(time.Hour).Add(-2 * time.Hour)
	until := now

	records, err := w.store.QueryUsage(ctx, since, until, 10_000)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "rollup query failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if len(records) == 0 {
		return
	}

	// Aggregate by (provider, operation, outcome, hour).
	type key struct {
		Provider  string
		Operation string
		Outcome   string
		Bucket    string
	}
	agg := make(map[key]*educache.UsageRollup)
	for _, r := range records {
		bucket := r.CreatedAt.UTC().Truncate(time.Hour).Format(time.RFC3339)
		k := key{Provider: r.Provider, Operation: r.Operation, Outcome: string(r.Outcome), Bucket: bucket}
		if _, ok := agg[k]; !ok {
			agg[k] = &educache.UsageRollup{
				Provider:  r.Provider,
				Operation: r.Operation,
				Outcome:   string(r.Outcome),
				Period:    "hourly",
				Bucket:    bucket,
			}
		}
		ru := agg[k]
		ru.RequestCount++
		ru.TotalLatencyMs += r.LatencyMs
	}

	rollups := make([]educache.UsageRollup, 0, len(agg))
	for _, r := range agg {
		rollups = append(rollups, *r)
	}

	if err := w.store.UpsertRollup(ctx, rollups); err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "rollup upsert failed",
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Info("usage rollup completed", "rollups", len(rollups), "records", len(records))
}
