// Package educache defines domain types and interfaces for the educache
// content-fetch layer. This package has no project imports -- it is the
// dependency root.
package educache

import (
	"context"
	"time"
)

// --- Cache ---

// CacheEntry is a single durable cache record.
type CacheEntry struct {
	Key        string    `json:"key"`
	Value      []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	SizeBytes  int64     `json:"size_bytes"`
	Compressed bool      `json:"compressed"`
}

// Expired reports whether the entry is logically absent at the given time.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheStats summarizes cache state for status reporting.
type CacheStats struct {
	Entries    int64 `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
}

// --- Rate limiting ---

// WindowStyle selects how a provider's rate window resets.
type WindowStyle string

const (
	// WindowFixed resets at aligned boundaries (every full window).
	WindowFixed WindowStyle = "fixed"
	// WindowRolling slides relative to the oldest in-window request.
	WindowRolling WindowStyle = "rolling"
)

// RateStatus is a non-mutating view of a provider's current window.
type RateStatus struct {
	Provider  string    `json:"provider"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// --- Usage ---

// Outcome classifies the result of a coordinated fetch.
type Outcome string

const (
	OutcomeHit       Outcome = "hit"
	OutcomeMiss      Outcome = "miss"
	OutcomeThrottled Outcome = "throttled"
	OutcomeError     Outcome = "error"
)

// UsageRecord is a single fetch decision and its result. Append-only.
type UsageRecord struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Operation string    `json:"operation"`
	Outcome   Outcome   `json:"outcome"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageSummary is the aggregate of usage records over a time window.
type UsageSummary struct {
	Window       time.Duration     `json:"window_seconds"`
	Total        int64             `json:"total"`
	HitRate      float64           `json:"hit_rate"`
	ThrottleRate float64           `json:"throttle_rate"`
	AvgLatencyMs float64           `json:"avg_latency_ms"`
	Counts       map[Outcome]int64 `json:"counts_by_outcome"`
}

// UsageRollup is an hourly aggregate of usage records.
type UsageRollup struct {
	Provider       string `json:"provider"`
	Operation      string `json:"operation"`
	Outcome        string `json:"outcome"`
	Period         string `json:"period"` // "hourly"
	Bucket         string `json:"bucket"` // RFC3339 hour boundary
	RequestCount   int64  `json:"request_count"`
	TotalLatencyMs int64  `json:"total_latency_ms"`
}

// --- Fetching ---

// FetchFunc performs the actual upstream call. Supplied by API client
// collaborators; it runs only after the rate limiter admits the request.
type FetchFunc func(ctx context.Context) ([]byte, error)

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}
