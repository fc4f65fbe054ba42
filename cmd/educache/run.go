package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openedu/educache/internal/cache"
	"github.com/openedu/educache/internal/circuitbreaker"
	"github.com/openedu/educache/internal/config"
	"github.com/openedu/educache/internal/fetch"
	"github.com/openedu/educache/internal/provider/arxiv"
	"github.com/openedu/educache/internal/provider/dictionary"
	"github.com/openedu/educache/internal/provider/openlibrary"
	"github.com/openedu/educache/internal/provider/wikipedia"
	"github.com/openedu/educache/internal/ratelimit"
	"github.com/openedu/educache/internal/server"
	"github.com/openedu/educache/internal/storage"
	"github.com/openedu/educache/internal/storage/sqlite"
	"github.com/openedu/educache/internal/telemetry"
	"github.com/openedu/educache/internal/usage"
	"github.com/openedu/educache/internal/worker"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Missing file falls back to built-in defaults; any other read or
		// parse failure is fatal.
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		slog.Warn("config file not found, using defaults", "path", configPath)
		cfg = config.Default()
	}

	slog.Info("starting educache", "version", version, "addr", cfg.Server.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, terr := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if terr != nil {
			return terr
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("tracing shutdown failed", "error", err)
			}
		}()
	}

	// Metrics
	var (
		metrics     *telemetry.Metrics
		metricsDeps server.MetricsDeps
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		metrics = telemetry.NewMetrics(reg)
		metricsDeps = server.MetricsDeps{
			Middleware: server.MetricsMiddleware(metrics),
			Handler:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
	}

	// Storage. An unreachable database ends caching, not the process:
	// lookups miss, writes drop, and readiness stays failing.
	var store storage.Store
	if s, serr := sqlite.New(cfg.Cache.Path); serr != nil {
		slog.Error("cache store unavailable, serving pass-through", "path", cfg.Cache.Path, "error", serr)
		store = storage.Unavailable{}
	} else {
		store = s
	}
	defer store.Close()

	// Cache manager
	mgr, err := cache.NewManager(store, cache.Options{
		MaxSizeBytes:      cfg.Cache.MaxSizeBytes(),
		DefaultTTL:        cfg.Cache.DefaultTTL,
		HotEntries:        cfg.Cache.HotEntries,
		Compress:          cfg.Cache.Compression,
		CompressThreshold: cfg.Cache.CompressThreshold,
	})
	if err != nil {
		return err
	}

	// Rate limiter from provider entries
	limits := make(map[string]ratelimit.Config, len(cfg.Providers))
	maxWaits := make(map[string]time.Duration, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if !p.IsEnabled() {
			continue
		}
		limits[p.Name] = ratelimit.Config{
			Limit:  p.RateLimit,
			Window: p.Window,
			Style:  p.Style(),
		}
		if p.MaxWait > 0 {
			maxWaits[p.Name] = p.MaxWait
		}
	}
	limiter := ratelimit.New(limits)

	// Usage tracker
	tracker := usage.NewTracker(store, usage.Options{
		FlushEvery: cfg.Usage.FlushInterval,
	})

	// Fetch coordinator
	coord := fetch.New(mgr, limiter, tracker, fetch.Options{
		ProviderMaxWait: maxWaits,
		Breakers:        circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig()),
		Metrics:         metrics,
		Tracer:          telemetry.Tracer("educache/fetch"),
	})

	// Provider clients
	deps := server.Deps{
		Coordinator: coord,
		ReadyCheck:  store.Ping,
		Metrics:     metricsDeps,
	}
	for _, p := range cfg.Providers {
		if !p.IsEnabled() {
			continue
		}
		client := &http.Client{Timeout: p.Timeout}
		switch p.Name {
		case "openlibrary":
			deps.Books = openlibrary.New(p.BaseURL, client, coord, p.TTL)
		case "wikipedia":
			deps.Articles = wikipedia.New(p.BaseURL, "", client, coord, p.TTL)
		case "dictionary":
			deps.Definitions = dictionary.New(p.BaseURL, client, coord, p.TTL)
		case "arxiv":
			deps.Papers = arxiv.New(p.BaseURL, client, coord, p.TTL)
		default:
			slog.Warn("unknown provider, skipping", "name", p.Name)
		}
	}

	// Background workers
	runner := worker.NewRunner(
		tracker,
		worker.NewCacheSweeper(mgr, cfg.Cache.SweepInterval, metrics),
		worker.NewUsageRollupWorker(store, cfg.Usage.RollupInterval),
		worker.NewUsagePruneWorker(store, cfg.Usage.PruneInterval, cfg.Usage.Retention),
	)
	workerErrCh := make(chan error, 1)
	go func() {
		workerErrCh <- runner.Run(ctx)
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("educache ready", "addr", cfg.Server.Addr, "providers", len(limits))

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return err
	case err := <-workerErrCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Let the tracker drain buffered usage records.
	if err := <-workerErrCh; err != nil {
		slog.Error("worker error during shutdown", "error", err)
	}

	slog.Info("educache stopped")
	return nil
}
