// Package usage records cache and rate-limit decisions for observability.
// Recording never blocks the fetch path; records buffer in a channel and
// batch-flush to the store in the background.
package usage

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	educache "github.com/openedu/educache/internal"
	"github.com/openedu/educache/internal/storage"
)

const (
	defaultChanSize   = 1000
	defaultBatchSize  = 100
	defaultFlushEvery = 5 * time.Second
	drainTime         = 30 * time.Second
)

// Options tunes tracker buffering.
type Options struct {
	ChanSize   int
	BatchSize  int
	FlushEvery time.Duration
}

// Tracker buffers usage records and batch-flushes them to the store.
// Records are dropped if the channel is full (back-pressure on slow DB).
type Tracker struct {
	ch      chan educache.UsageRecord
	store   storage.UsageStore
	opts    Options
	dropped atomic.Int64
}

// NewTracker creates a Tracker backed by store.
func NewTracker(store storage.UsageStore, opts Options) *Tracker {
	if opts.ChanSize <= 0 {
		opts.ChanSize = defaultChanSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = defaultFlushEvery
	}
	return &Tracker{
		ch:    make(chan educache.UsageRecord, opts.ChanSize),
		store: store,
		opts:  opts,
	}
}

// Record enqueues a usage record. It never blocks and never fails the
// caller; drops on full channel.
func (t *Tracker) Record(provider, operation string, outcome educache.Outcome, latency time.Duration) {
	r := educache.UsageRecord{
		Provider:  provider,
		Operation: operation,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}
	select {
	case t.ch <- r:
	default:
		t.dropped.Add(1)
		slog.Warn("usage record dropped, channel full", "provider", provider)
	}
}

// Dropped returns the count of records lost to a full buffer.
func (t *Tracker) Dropped() int64 { return t.dropped.Load() }

// Pending returns the current buffer depth, for gauge reporting.
func (t *Tracker) Pending() int { return len(t.ch) }

// Aggregate summarizes recorded outcomes over the trailing window.
func (t *Tracker) Aggregate(ctx context.Context, window time.Duration) (*educache.UsageSummary, error) {
	sum, err := t.store.AggregateUsage(ctx, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	sum.Window = window
	return sum, nil
}

// Name returns the worker identifier for runner logging.
func (t *Tracker) Name() string { return "usage_flush" }

// Run flushes records until ctx is cancelled, then drains what remains.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.opts.FlushEvery)
	defer ticker.Stop()

	buf := make([]educache.UsageRecord, 0, t.opts.BatchSize)

	for {
		select {
		case r := <-t.ch:
			buf = append(buf, r)
			if len(buf) >= t.opts.BatchSize {
				t.flush(ctx, buf)
				buf = buf[:0]
			}

		case <-ticker.C:
			if len(buf) > 0 {
				t.flush(ctx, buf)
				buf = buf[:0]
			}

		case <-ctx.Done():
			t.drain(buf)
			return nil
		}
	}
}

func (t *Tracker) drain(buf []educache.UsageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTime)
	defer cancel()

	for {
		select {
		case r := <-t.ch:
			buf = append(buf, r)
			if len(buf) >= t.opts.BatchSize {
				t.flush(ctx, buf)
				buf = buf[:0]
			}
		default:
			// Channel empty, flush remaining.
			if len(buf) > 0 {
				t.flush(ctx, buf)
			}
			return
		}
	}
}

func (t *Tracker) flush(ctx context.Context, buf []educache.UsageRecord) {
	// Copy to avoid aliasing the caller's slice.
	batch := make([]educache.UsageRecord, len(buf))
	copy(batch, buf)

	// Assign IDs off the hot path; Record leaves ID empty.
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = uuid.Must(uuid.NewV7()).String()
		}
	}

	if err := t.store.InsertUsage(ctx, batch); err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "usage flush failed",
			slog.Int("count", len(batch)),
			slog.String("error", err.Error()),
		)
	}
}
