// Package storage defines persistence interfaces for educache.
package storage

import (
	"context"
	"time"

	educache "github.com/openedu/educache/internal"
)

// CacheStore manages durable cache entry persistence. Implementations must
// support concurrent readers and serialize writes without blocking reads.
type CacheStore interface {
	PutEntry(ctx context.Context, e *educache.CacheEntry) error
	// GetEntry returns the entry for key, expired or not. Expiry is the
	// cache manager's concern. Returns educache.ErrNotFound when absent.
	GetEntry(ctx context.Context, key string) (*educache.CacheEntry, error)
	DeleteEntry(ctx context.Context, key string) error
	// ScanExpired returns up to limit keys whose entries expired before now.
	ScanExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
	// OldestEntries returns up to limit keys ordered oldest-created-first,
	// ties broken by insertion order.
	OldestEntries(ctx context.Context, limit int) ([]string, error)
	TotalSize(ctx context.Context) (int64, error)
	CountEntries(ctx context.Context) (int64, error)
}

// UsageStore manages usage record persistence.
type UsageStore interface {
	InsertUsage(ctx context.Context, records []educache.UsageRecord) error
	// AggregateUsage summarizes records created within [since, now].
	AggregateUsage(ctx context.Context, since time.Time) (*educache.UsageSummary, error)
	// PruneUsage deletes records created before the cutoff and returns the
	// number removed.
	PruneUsage(ctx context.Context, cutoff time.Time) (int64, error)
	QueryUsage(ctx context.Context, since, until time.Time, limit int) ([]educache.UsageRecord, error)
	UpsertRollup(ctx context.Context, rollups []educache.UsageRollup) error
	QueryRollups(ctx context.Context, provider string, since time.Time) ([]educache.UsageRollup, error)
}

// Store combines all storage interfaces.
type Store interface {
	CacheStore
	UsageStore
	Ping(ctx context.Context) error
	Close() error
}
