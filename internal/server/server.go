// Package server implements the HTTP transport layer for educache.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	educache "github.com/openedu/educache/internal"
	"github.com/openedu/educache/internal/provider/arxiv"
	"github.com/openedu/educache/internal/provider/dictionary"
	"github.com/openedu/educache/internal/provider/openlibrary"
	"github.com/openedu/educache/internal/provider/wikipedia"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Coordinator is the fetch-layer surface the operational endpoints consume.
type Coordinator interface {
	Invalidate(ctx context.Context, key string) error
	Snapshot() []educache.RateStatus
	BreakerStates() map[string]string
	Aggregate(ctx context.Context, window time.Duration) (*educache.UsageSummary, error)
	CacheStats(ctx context.Context) educache.CacheStats
}

// BookSource serves book lookups, normally the Open Library client.
type BookSource interface {
	SearchBooks(ctx context.Context, query string, limit int) ([]openlibrary.Book, error)
	SearchBySubject(ctx context.Context, subject string, limit int) ([]openlibrary.Book, error)
	BookByISBN(ctx context.Context, isbn string) (*openlibrary.Book, error)
}

// ArticleSource serves encyclopedia lookups, normally the Wikipedia client.
type ArticleSource interface {
	Search(ctx context.Context, query string, limit int) ([]wikipedia.Article, error)
	Summary(ctx context.Context, title string) (*wikipedia.Article, error)
	Featured(ctx context.Context, day time.Time) (*wikipedia.Article, error)
}

// DefinitionSource serves word lookups, normally the dictionary client.
type DefinitionSource interface {
	Define(ctx context.Context, word string) (*dictionary.Entry, error)
}

// PaperSource serves paper lookups, normally the arXiv client.
type PaperSource interface {
	SearchPapers(ctx context.Context, query string, limit int) ([]arxiv.Paper, error)
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Coordinator Coordinator
	Books       BookSource       // nil = books routes return 404
	Articles    ArticleSource    // nil = articles routes return 404
	Definitions DefinitionSource // nil = definitions routes return 404
	Papers      PaperSource      // nil = papers routes return 404
	ReadyCheck  ReadyChecker     // nil = always ready (for tests)
	Metrics     MetricsDeps
}

// MetricsDeps wires Prometheus into the router; both fields nil disables it.
type MetricsDeps struct {
	Middleware func(http.Handler) http.Handler
	Handler    http.Handler
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics.Middleware != nil {
		r.Use(deps.Metrics.Middleware)
	}

	// System endpoints
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.Metrics.Handler != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler)
	}

	// Operational API
	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/usage", s.handleUsage)
	r.Get("/v1/limits", s.handleLimits)
	r.Delete("/v1/cache", s.handleInvalidate)

	// Content API
	if deps.Books != nil {
		r.Get("/v1/books", s.handleBooks)
		r.Get("/v1/books/isbn/{isbn}", s.handleBookByISBN)
	}
	if deps.Articles != nil {
		r.Get("/v1/articles", s.handleArticles)
		r.Get("/v1/articles/featured", s.handleFeaturedArticle)
		r.Get("/v1/articles/{title}", s.handleArticleSummary)
	}
	if deps.Definitions != nil {
		r.Get("/v1/definitions/{word}", s.handleDefinition)
	}
	if deps.Papers != nil {
		r.Get("/v1/papers", s.handlePapers)
	}

	return r
}

type server struct {
	deps Deps
}
