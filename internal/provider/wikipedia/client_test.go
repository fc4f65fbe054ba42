package wikipedia

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openedu/educache/internal/fetch"
)

type passFetcher struct{}

func (passFetcher) Fetch(ctx context.Context, req fetch.Request) ([]byte, error) {
	return req.Fetch(ctx)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page/summary/Solar_energy" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"title":"Solar energy","description":"Radiant light and heat from the Sun",
			"extract":"Solar energy is radiant light and heat from the Sun.",
			"thumbnail":{"source":"https://upload.wikimedia.org/thumb.jpg"},
			"content_urls":{"desktop":{"page":"https://en.wikipedia.org/wiki/Solar_energy"}},
			"timestamp":"2024-01-15T00:00:00Z"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, nil, passFetcher{}, time.Hour)
	// Spaces in the title become underscores in the request path.
	a, err := c.Summary(context.Background(), "Solar energy")
	if err != nil {
		t.Fatal(err)
	}
	if a.Title != "Solar energy" {
		t.Errorf("title = %q", a.Title)
	}
	if a.Extract == "" || a.ThumbnailURL == "" || a.PageURL == "" {
		t.Errorf("incomplete article: %+v", a)
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/page" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "volcano" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %q", got)
		}
		fmt.Fprint(w, `{"pages":[
			{"key":"Volcano","title":"Volcano","description":"Rupture in a planet's crust","excerpt":"A volcano is..."},
			{"key":"Shield_volcano","title":"Shield volcano","description":"Low-profile volcano","excerpt":"A shield volcano is..."}
		]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, nil, passFetcher{}, time.Hour)
	articles, err := c.Search(context.Background(), "volcano", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}
	if articles[0].Title != "Volcano" {
		t.Errorf("title = %q", articles[0].Title)
	}
	if articles[1].PageURL != "https://en.wikipedia.org/wiki/Shield_volcano" {
		t.Errorf("page url = %q", articles[1].PageURL)
	}
}

func TestFeatured(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed/featured/2024/03/01" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"tfa":{"title":"Apollo 11","description":"First crewed Moon landing",
			"extract":"Apollo 11 was the American spaceflight...",
			"content_urls":{"desktop":{"page":"https://en.wikipedia.org/wiki/Apollo_11"}}}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, nil, passFetcher{}, time.Hour)
	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a, err := c.Featured(context.Background(), day)
	if err != nil {
		t.Fatal(err)
	}
	if a.Title != "Apollo 11" {
		t.Errorf("title = %q", a.Title)
	}
}

func TestFeatured_NoArticle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"mostread":{}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, nil, passFetcher{}, time.Hour)
	if _, err := c.Featured(context.Background(), time.Now()); err == nil {
		t.Fatal("want error when tfa is absent")
	}
}

func TestSummary_EmptyTitle(t *testing.T) {
	t.Parallel()
	c := New("http://unused", "http://unused", nil, passFetcher{}, time.Hour)
	if _, err := c.Summary(context.Background(), "   "); err == nil {
		t.Fatal("want error for empty title")
	}
}
