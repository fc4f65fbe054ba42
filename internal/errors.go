package educache

import "errors"

// Sentinel errors for the educache domain.
var (
	// ErrStoreUnavailable means the durable backing medium cannot be
	// reached. Caching degrades to pass-through; callers treat lookups as
	// misses rather than failing.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound means no live entry exists for the key.
	ErrNotFound = errors.New("not found")
	// ErrInvalidKey means the fingerprint input was malformed. Rejected
	// before any I/O.
	ErrInvalidKey = errors.New("invalid cache key")
	// ErrRateLimited means the provider's window is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrAcquireTimeout means a blocking acquire gave up before admission.
	ErrAcquireTimeout = errors.New("rate limit acquire timed out")
	// ErrUpstreamFetch wraps failures from the collaborator's fetch
	// function. Never cached.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	// ErrCircuitOpen means the provider's breaker is rejecting calls after
	// repeated upstream failures.
	ErrCircuitOpen = errors.New("circuit open")
)
