package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// parseLimit reads the limit query parameter, defaulting to 10 and
// capping at 50 to bound upstream result sizes.
func parseLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return limit
}

// handleBooks searches books by free-text query, or by subject when the
// subject parameter is present instead.
func (s *server) handleBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	subject := r.URL.Query().Get("subject")
	limit := parseLimit(r)

	switch {
	case subject != "":
		books, err := s.deps.Books.SearchBySubject(r.Context(), subject, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"books": books})
	case q != "":
		books, err := s.deps.Books.SearchBooks(r.Context(), q, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"books": books})
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse("missing q or subject parameter"))
	}
}

func (s *server) handleBookByISBN(w http.ResponseWriter, r *http.Request) {
	book, err := s.deps.Books.BookByISBN(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *server) handleArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing q parameter"))
		return
	}
	articles, err := s.deps.Articles.Search(r.Context(), q, parseLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

func (s *server) handleArticleSummary(w http.ResponseWriter, r *http.Request) {
	article, err := s.deps.Articles.Summary(r.Context(), chi.URLParam(r, "title"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// handleFeaturedArticle returns today's featured article, or the date
// parameter's (YYYY-MM-DD) when given.
func (s *server) handleFeaturedArticle(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid date: "+raw))
			return
		}
		day = parsed
	}
	article, err := s.deps.Articles.Featured(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *server) handleDefinition(w http.ResponseWriter, r *http.Request) {
	entry, err := s.deps.Definitions.Define(r.Context(), chi.URLParam(r, "word"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *server) handlePapers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing q parameter"))
		return
	}
	papers, err := s.deps.Papers.SearchPapers(r.Context(), q, parseLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
}
