package cache

import (
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// hotEntry wraps a decoded payload with its expiration time.
type hotEntry struct {
	data      []byte
	expiresAt time.Time
}

// hotTier is an in-memory W-TinyLFU cache backed by otter that fronts the
// durable store so repeat reads skip SQLite.
type hotTier struct {
	cache *otter.Cache[string, hotEntry]
}

// newHotTier creates the in-memory tier with the given max entry count.
func newHotTier(maxEntries int, defaultTTL time.Duration) (*hotTier, error) {
	c, err := otter.New[string, hotEntry](&otter.Options[string, hotEntry]{
		MaximumSize:      maxEntries,
		ExpiryCalculator: otter.ExpiryWriting[string, hotEntry](defaultTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create hot tier: %w", err)
	}
	return &hotTier{cache: c}, nil
}

// get returns a value if present and not expired.
func (h *hotTier) get(key string, now time.Time) ([]byte, bool) {
	e, ok := h.cache.GetIfPresent(key)
	if !ok {
		return nil, false
	}
	if now.After(e.expiresAt) {
		h.cache.Invalidate(key)
		return nil, false
	}
	return e.data, true
}

// set stores a value with a per-entry expiry.
func (h *hotTier) set(key string, data []byte, expiresAt time.Time) {
	h.cache.Set(key, hotEntry{data: data, expiresAt: expiresAt})
}

// delete removes a value.
func (h *hotTier) delete(key string) {
	h.cache.Invalidate(key)
}
