// Package ratelimit tracks per-provider request budgets over fixed or
// rolling windows and decides admit/deny/delay for outbound calls.
package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	educache "github.com/openedu/educache/internal"
)

// Config describes one provider's quota.
type Config struct {
	Limit  int
	Window time.Duration
	Style  educache.WindowStyle
}

// Decision is the outcome of an admission check.
type Decision struct {
	Admitted   bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// providerLimiter owns one provider's window. All mutation goes through its
// mutex so check-and-increment is atomic under concurrent admissions.
type providerLimiter struct {
	mu  sync.Mutex
	cfg Config
	win window
}

func newProviderLimiter(cfg Config, now time.Time) *providerLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	var w window
	switch cfg.Style {
	case educache.WindowRolling:
		w = newRollingWindow(cfg.Limit, cfg.Window)
	default:
		w = newFixedWindow(cfg.Limit, cfg.Window, now)
	}
	return &providerLimiter{cfg: cfg, win: w}
}

// Limiter manages independent per-provider windows. A burst against one
// provider never throttles another.
type Limiter struct {
	mu        sync.RWMutex
	providers map[string]*providerLimiter
}

// New creates a Limiter with the given provider quotas.
func New(configs map[string]Config) *Limiter {
	l := &Limiter{providers: make(map[string]*providerLimiter)}
	now := time.Now()
	for name, cfg := range configs {
		l.providers[name] = newProviderLimiter(cfg, now)
	}
	return l
}

// Register adds or replaces a provider's quota.
func (l *Limiter) Register(provider string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.providers[provider] = newProviderLimiter(cfg, time.Now())
}

func (l *Limiter) get(provider string) *providerLimiter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.providers[provider]
}

// TryAcquire performs a non-blocking admission check against the provider's
// current window, consuming one unit on admission. Unknown providers and
// non-positive limits are unlimited.
func (l *Limiter) TryAcquire(provider string) Decision {
	p := l.get(provider)
	if p == nil || p.cfg.Limit <= 0 {
		return Decision{Admitted: true}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	ok, retryAfter := p.win.tryAcquire(now)
	remaining, _ := p.win.snapshot(now)
	if ok {
		return Decision{Admitted: true, Limit: p.cfg.Limit, Remaining: remaining}
	}
	return Decision{Limit: p.cfg.Limit, RetryAfter: retryAfter}
}

// AcquireBlocking suspends the caller until admission is possible or maxWait
// elapses. Only this caller is affected by its context: cancellation releases
// it without touching other providers or waiters.
func (l *Limiter) AcquireBlocking(ctx context.Context, provider string, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		d := l.TryAcquire(provider)
		if d.Admitted {
			return nil
		}

		wait := d.RetryAfter
		if wait <= 0 {
			wait = time.Millisecond
		}
		if remaining := time.Until(deadline); remaining < wait {
			if remaining <= 0 {
				return educache.ErrAcquireTimeout
			}
			// Sleeping the shorter remainder lets us return the timeout
			// error promptly instead of oversleeping the budget.
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if !time.Now().Before(deadline) {
				if d := l.TryAcquire(provider); d.Admitted {
					return nil
				}
				return educache.ErrAcquireTimeout
			}
		}
	}
}

// Remaining reports the provider's budget without mutating window state.
func (l *Limiter) Remaining(provider string) educache.RateStatus {
	p := l.get(provider)
	if p == nil || p.cfg.Limit <= 0 {
		return educache.RateStatus{Provider: provider}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	remaining, resetAt := p.win.snapshot(time.Now())
	return educache.RateStatus{
		Provider:  provider,
		Limit:     p.cfg.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// Snapshot reports every provider's status, sorted by provider name.
func (l *Limiter) Snapshot() []educache.RateStatus {
	l.mu.RLock()
	names := make([]string, 0, len(l.providers))
	for name := range l.providers {
		names = append(names, name)
	}
	l.mu.RUnlock()
	sort.Strings(names)

	out := make([]educache.RateStatus, 0, len(names))
	for _, name := range names {
		out = append(out, l.Remaining(name))
	}
	return out
}
