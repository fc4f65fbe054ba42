package storage

import (
	"context"
	"time"

	educache "github.com/openedu/educache/internal"
)

// Unavailable is a Store stub for when the backing database cannot be
// opened. Every operation reports educache.ErrStoreUnavailable: cache reads
// become misses, writes are dropped, and Ping keeps readiness failing, so
// the process serves pass-through instead of refusing to start.
type Unavailable struct{}

var _ Store = Unavailable{}

func (Unavailable) PutEntry(context.Context, *educache.CacheEntry) error {
	return educache.ErrStoreUnavailable
}

func (Unavailable) GetEntry(context.Context, string) (*educache.CacheEntry, error) {
	return nil, educache.ErrStoreUnavailable
}

func (Unavailable) DeleteEntry(context.Context, string) error {
	return educache.ErrStoreUnavailable
}

func (Unavailable) ScanExpired(context.Context, time.Time, int) ([]string, error) {
	return nil, educache.ErrStoreUnavailable
}

func (Unavailable) OldestEntries(context.Context, int) ([]string, error) {
	return nil, educache.ErrStoreUnavailable
}

func (Unavailable) TotalSize(context.Context) (int64, error) {
	return 0, educache.ErrStoreUnavailable
}

func (Unavailable) CountEntries(context.Context) (int64, error) {
	return 0, educache.ErrStoreUnavailable
}

func (Unavailable) InsertUsage(context.Context, []educache.UsageRecord) error {
	return educache.ErrStoreUnavailable
}

func (Unavailable) AggregateUsage(context.Context, time.Time) (*educache.UsageSummary, error) {
	return nil, educache.ErrStoreUnavailable
}

func (Unavailable) PruneUsage(context.Context, time.Time) (int64, error) {
	return 0, educache.ErrStoreUnavailable
}

func (Unavailable) QueryUsage(context.Context, time.Time, time.Time, int) ([]educache.UsageRecord, error) {
	return nil, educache.ErrStoreUnavailable
}

func (Unavailable) UpsertRollup(context.Context, []educache.UsageRollup) error {
	return educache.ErrStoreUnavailable
}

func (Unavailable) QueryRollups(context.Context, string, time.Time) ([]educache.UsageRollup, error) {
	return nil, educache.ErrStoreUnavailable
}

func (Unavailable) Ping(context.Context) error { return educache.ErrStoreUnavailable }

func (Unavailable) Close() error { return nil }
