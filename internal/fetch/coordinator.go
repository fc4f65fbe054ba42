// Package fetch orchestrates "check cache, acquire rate budget, call
// upstream, store result" for the API client collaborators. It is the only
// integration point they consume.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	educache "github.com/openedu/educache/internal"
	"github.com/openedu/educache/internal/cache"
	"github.com/openedu/educache/internal/circuitbreaker"
	"github.com/openedu/educache/internal/ratelimit"
	"github.com/openedu/educache/internal/telemetry"
	"github.com/openedu/educache/internal/usage"
)

const defaultMaxWait = 30 * time.Second

// Request identifies one coordinated fetch.
type Request struct {
	Provider  string
	Operation string
	Params    map[string]string
	// TTL for the stored result; non-positive falls back to the cache
	// manager's default.
	TTL time.Duration
	// Fetch is the collaborator-supplied upstream call. It runs at most
	// once per cache key among racing callers, and only after admission.
	Fetch educache.FetchFunc
}

// Coordinator composes the cache manager, rate limiter, and usage tracker.
// The composition gives both guarantees at once: no duplicate upstream work
// for the same key, and no provider quota violation.
type Coordinator struct {
	cache    *cache.Manager
	limiter  *ratelimit.Limiter
	tracker  *usage.Tracker
	breakers *circuitbreaker.Registry
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	maxWait  time.Duration
	maxWaits map[string]time.Duration
}

// Options configures a Coordinator.
type Options struct {
	// MaxWait bounds how long a miss may block on rate-limit admission.
	MaxWait time.Duration
	// ProviderMaxWait overrides MaxWait per provider.
	ProviderMaxWait map[string]time.Duration
	// Breakers is optional; nil disables circuit breaking.
	Breakers *circuitbreaker.Registry
	// Metrics is optional; nil disables instrument updates.
	Metrics *telemetry.Metrics
	// Tracer is optional; nil disables spans.
	Tracer trace.Tracer
}

// New creates a Coordinator.
func New(c *cache.Manager, l *ratelimit.Limiter, t *usage.Tracker, opts Options) *Coordinator {
	if opts.MaxWait <= 0 {
		opts.MaxWait = defaultMaxWait
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Coordinator{
		cache:    c,
		limiter:  l,
		tracker:  t,
		breakers: opts.Breakers,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		maxWait:  opts.MaxWait,
		maxWaits: opts.ProviderMaxWait,
	}
}

// Fetch returns the resource identified by the request, from cache when
// live, otherwise from upstream under the provider's rate budget. Every
// outcome is recorded with its latency.
func (c *Coordinator) Fetch(ctx context.Context, req Request) ([]byte, error) {
	key, err := cache.Fingerprint(req.Provider, req.Operation, req.Params)
	if err != nil {
		return nil, err
	}
	return c.FetchKey(ctx, key, req)
}

// FetchKey is Fetch for callers that computed the fingerprint themselves.
func (c *Coordinator) FetchKey(ctx context.Context, key string, req Request) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "fetch",
		trace.WithAttributes(
			attribute.String("provider", req.Provider),
			attribute.String("operation", req.Operation),
		))
	defer span.End()

	start := time.Now()
	// Written by the flight goroutine, read after the result channel
	// delivers; the atomic keeps a cancelled waiter's read race-free.
	var computed atomic.Bool

	val, err := c.cache.GetOrCompute(ctx, key, req.TTL, func(fctx context.Context) ([]byte, error) {
		computed.Store(true)

		// Breaker check runs before admission so a known-bad upstream
		// does not consume rate budget.
		var breaker *circuitbreaker.Breaker
		if c.breakers != nil {
			breaker = c.breakers.GetOrCreate(req.Provider)
			if !breaker.Allow() {
				return nil, fmt.Errorf("%w: %s", educache.ErrCircuitOpen, req.Provider)
			}
		}

		if d := c.limiter.TryAcquire(req.Provider); !d.Admitted {
			if c.metrics != nil {
				c.metrics.RateLimitWaits.WithLabelValues(req.Provider).Inc()
			}
			if aerr := c.limiter.AcquireBlocking(fctx, req.Provider, c.acquireWait(req.Provider)); aerr != nil {
				if c.metrics != nil {
					c.metrics.RateLimitRejects.WithLabelValues(req.Provider).Inc()
				}
				return nil, fmt.Errorf("%w: %s: %w", educache.ErrRateLimited, req.Provider, aerr)
			}
		}

		upstreamStart := time.Now()
		raw, ferr := req.Fetch(fctx)
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(req.Provider).Observe(time.Since(upstreamStart).Seconds())
		}
		if breaker != nil {
			if ferr != nil {
				breaker.RecordError(circuitbreaker.ClassifyError(ferr))
			} else {
				breaker.RecordSuccess()
			}
		}
		if ferr != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", educache.ErrUpstreamFetch, req.Provider, req.Operation, ferr)
		}
		return raw, nil
	})

	outcome := classify(err, computed.Load())
	c.observe(req, outcome, time.Since(start))
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return val, nil
}

// acquireWait returns the admission wait bound for a provider.
func (c *Coordinator) acquireWait(provider string) time.Duration {
	if v, ok := c.maxWaits[provider]; ok && v > 0 {
		return v
	}
	return c.maxWait
}

func classify(err error, computed bool) educache.Outcome {
	switch {
	case errors.Is(err, educache.ErrRateLimited):
		return educache.OutcomeThrottled
	case err != nil:
		return educache.OutcomeError
	case computed:
		return educache.OutcomeMiss
	default:
		return educache.OutcomeHit
	}
}

func (c *Coordinator) observe(req Request, outcome educache.Outcome, latency time.Duration) {
	c.tracker.Record(req.Provider, req.Operation, outcome, latency)
	if c.metrics == nil {
		return
	}
	c.metrics.FetchesTotal.WithLabelValues(req.Provider, req.Operation, string(outcome)).Inc()
	switch outcome {
	case educache.OutcomeHit:
		c.metrics.CacheHits.Inc()
	case educache.OutcomeMiss:
		c.metrics.CacheMisses.Inc()
	}
	c.metrics.UsageQueueLength.Set(float64(c.tracker.Pending()))
}

// Invalidate removes a cached resource immediately regardless of TTL.
func (c *Coordinator) Invalidate(ctx context.Context, key string) error {
	return c.cache.Invalidate(ctx, key)
}

// Remaining reports a provider's current rate budget.
func (c *Coordinator) Remaining(provider string) educache.RateStatus {
	return c.limiter.Remaining(provider)
}

// Snapshot reports every configured provider's rate budget, sorted by name.
func (c *Coordinator) Snapshot() []educache.RateStatus {
	return c.limiter.Snapshot()
}

// BreakerStates reports each provider's circuit state; nil when circuit
// breaking is disabled.
func (c *Coordinator) BreakerStates() map[string]string {
	if c.breakers == nil {
		return nil
	}
	return c.breakers.States()
}

// Aggregate summarizes fetch outcomes over the trailing window.
func (c *Coordinator) Aggregate(ctx context.Context, window time.Duration) (*educache.UsageSummary, error) {
	return c.tracker.Aggregate(ctx, window)
}

// CacheStats reports cache counters for status reporting.
func (c *Coordinator) CacheStats(ctx context.Context) educache.CacheStats {
	return c.cache.Stats(ctx)
}
