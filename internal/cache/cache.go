// Package cache implements the shared TTL response cache: a durable SQLite
// layer fronted by an in-memory hot tier, with single-flight de-duplication
// of concurrent computes for the same key.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	educache "github.com/openedu/educache/internal"
	"github.com/openedu/educache/internal/storage"
)

const (
	sweepBatch = 256
	evictBatch = 32
)

// Options configures a Manager.
type Options struct {
	// MaxSizeBytes is the durable size budget. Zero disables size eviction.
	MaxSizeBytes int64
	// DefaultTTL applies when a caller passes a non-positive TTL.
	DefaultTTL time.Duration
	// HotEntries is the max entry count of the in-memory tier.
	HotEntries int
	// Compress enables gzip for payloads of at least CompressThreshold bytes.
	Compress          bool
	CompressThreshold int
}

// Manager owns cache entry lifecycle on top of a storage.CacheStore.
// Store failures degrade to pass-through: lookups become misses and writes
// are skipped, so a storage outage never fails the caller.
type Manager struct {
	store storage.CacheStore
	hot   *hotTier
	opts  Options

	flight singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewManager creates a cache manager over the given durable store.
func NewManager(store storage.CacheStore, opts Options) (*Manager, error) {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	if opts.HotEntries <= 0 {
		opts.HotEntries = 4096
	}
	if opts.CompressThreshold <= 0 {
		opts.CompressThreshold = 1024
	}
	hot, err := newHotTier(opts.HotEntries, opts.DefaultTTL)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, hot: hot, opts: opts}, nil
}

// GetOrCompute returns the cached value for key if present and unexpired.
// Otherwise compute runs exactly once among concurrently racing callers and
// every waiter receives its result. Compute errors propagate to all waiters
// and nothing is stored, so the next call re-attempts.
//
// A waiter whose context is cancelled detaches without affecting the other
// waiters or the in-flight compute.
func (m *Manager) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute educache.FetchFunc) ([]byte, error) {
	if key == "" {
		return nil, educache.ErrInvalidKey
	}
	if ttl <= 0 {
		ttl = m.opts.DefaultTTL
	}

	if val, ok := m.lookup(ctx, key); ok {
		m.hits.Add(1)
		return val, nil
	}
	m.misses.Add(1)

	// The compute must not die with the first caller, so it runs on a
	// context detached from any single waiter's cancellation.
	flightCtx := context.WithoutCancel(ctx)

	ch := m.flight.DoChan(key, func() (any, error) {
		// A racing caller may have stored the value between our miss and
		// the flight starting.
		if val, ok := m.lookup(flightCtx, key); ok {
			return val, nil
		}
		val, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		m.put(flightCtx, key, val, ttl)
		return val, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the live cached value for key, or ErrNotFound.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	if val, ok := m.lookup(ctx, key); ok {
		m.hits.Add(1)
		return val, nil
	}
	m.misses.Add(1)
	return nil, educache.ErrNotFound
}

// Invalidate removes an entry immediately regardless of TTL.
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	m.hot.delete(key)
	if err := m.store.DeleteEntry(ctx, key); err != nil {
		return err
	}
	return nil
}

// RemoveExpired deletes entries past their expiry. It is the shared primitive
// behind both the background sweep and on-demand cleanup.
func (m *Manager) RemoveExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for {
		keys, err := m.store.ScanExpired(ctx, now, sweepBatch)
		if err != nil {
			return removed, err
		}
		if len(keys) == 0 {
			return removed, nil
		}
		for _, k := range keys {
			m.hot.delete(k)
			if err := m.store.DeleteEntry(ctx, k); err != nil {
				return removed, err
			}
			removed++
		}
		if len(keys) < sweepBatch {
			return removed, nil
		}
	}
}

// EvictIfOverBudget removes entries oldest-created-first (insertion order on
// ties) until the durable size is back under budget.
func (m *Manager) EvictIfOverBudget(ctx context.Context) (int, error) {
	if m.opts.MaxSizeBytes <= 0 {
		return 0, nil
	}
	total, err := m.store.TotalSize(ctx)
	if err != nil {
		return 0, err
	}
	evicted := 0
	for total > m.opts.MaxSizeBytes {
		keys, err := m.store.OldestEntries(ctx, evictBatch)
		if err != nil {
			return evicted, err
		}
		if len(keys) == 0 {
			return evicted, nil
		}
		for _, k := range keys {
			if total <= m.opts.MaxSizeBytes {
				return evicted, nil
			}
			e, err := m.store.GetEntry(ctx, k)
			if err != nil && !errors.Is(err, educache.ErrNotFound) {
				return evicted, err
			}
			m.hot.delete(k)
			if err := m.store.DeleteEntry(ctx, k); err != nil {
				return evicted, err
			}
			if e != nil {
				total -= e.SizeBytes
			}
			evicted++
		}
	}
	return evicted, nil
}

// Stats reports cache counters and durable totals.
func (m *Manager) Stats(ctx context.Context) educache.CacheStats {
	st := educache.CacheStats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
	}
	if n, err := m.store.CountEntries(ctx); err == nil {
		st.Entries = n
	}
	if b, err := m.store.TotalSize(ctx); err == nil {
		st.TotalBytes = b
	}
	return st
}

// lookup checks the hot tier then the durable store. Store errors are
// downgraded to a miss.
func (m *Manager) lookup(ctx context.Context, key string) ([]byte, bool) {
	now := time.Now()
	if val, ok := m.hot.get(key, now); ok {
		return val, true
	}

	e, err := m.store.GetEntry(ctx, key)
	if err != nil {
		if !errors.Is(err, educache.ErrNotFound) {
			slog.Warn("cache store read failed, treating as miss", "key", key, "error", err)
		}
		return nil, false
	}
	if e.Expired(now) {
		// Logically absent; the sweeper reclaims the row later.
		return nil, false
	}

	val := e.Value
	if e.Compressed {
		val, err = decompress(val)
		if err != nil {
			slog.Warn("cache entry corrupt, dropping", "key", key, "error", err)
			_ = m.store.DeleteEntry(ctx, key)
			return nil, false
		}
	}
	m.hot.set(key, val, e.ExpiresAt)
	return val, true
}

// put stores a computed value. Failures are logged, never surfaced: the
// caller already has the value.
func (m *Manager) put(ctx context.Context, key string, val []byte, ttl time.Duration) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	stored := val
	compressed := false
	if m.opts.Compress && len(val) >= m.opts.CompressThreshold {
		if c, err := compress(val); err == nil && len(c) < len(val) {
			stored = c
			compressed = true
		}
	}

	err := m.store.PutEntry(ctx, &educache.CacheEntry{
		Key:        key,
		Value:      stored,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
		SizeBytes:  int64(len(stored)),
		Compressed: compressed,
	})
	if err != nil {
		slog.Warn("cache store write failed, entry not persisted", "key", key, "error", err)
	}
	m.hot.set(key, val, expiresAt)
}
