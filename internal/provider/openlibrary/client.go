// Package openlibrary implements the Open Library API client.
package openlibrary

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/openedu/educache/internal/fetch"
	"github.com/openedu/educache/internal/provider"
)

const (
	defaultBaseURL = "https://openlibrary.org"
	providerName   = "openlibrary"
)

// Book is a normalized Open Library record.
type Book struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Authors          []string `json:"authors,omitempty"`
	ISBN             string   `json:"isbn,omitempty"`
	ISBN13           string   `json:"isbn13,omitempty"`
	FirstPublishYear int      `json:"first_publish_year,omitempty"`
	Publisher        string   `json:"publisher,omitempty"`
	Subjects         []string `json:"subjects,omitempty"`
	CoverURL         string   `json:"cover_url,omitempty"`
	PageCount        int      `json:"page_count,omitempty"`
	Language         string   `json:"language,omitempty"`
	SourceURL        string   `json:"source_url,omitempty"`
}

// Client is the Open Library adapter. All calls go through the fetch
// coordinator, so results are cached and rate limited per provider config.
type Client struct {
	baseURL string
	http    *http.Client
	coord   provider.Fetcher
	ttl     time.Duration
}

// New creates an Open Library Client. If baseURL is empty it defaults to
// "https://openlibrary.org"; a nil client gets a 30s timeout.
func New(baseURL string, client *http.Client, coord provider.Fetcher, ttl time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: client, coord: coord, ttl: ttl}
}

// Name returns the provider identifier used for rate limiting and usage.
func (c *Client) Name() string { return providerName }

// SearchBooks searches by free-text query and returns up to limit books.
func (c *Client) SearchBooks(ctx context.Context, query string, limit int) ([]Book, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("openlibrary: empty query")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	raw, err := c.coord.Fetch(ctx, fetch.Request{
		Provider:  providerName,
		Operation: "search",
		Params:    map[string]string{"q": query, "limit": strconv.Itoa(limit)},
		TTL:       c.ttl,
		Fetch: func(fctx context.Context) ([]byte, error) {
			u := fmt.Sprintf("%s/search.json?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), limit)
			return provider.Get(fctx, c.http, providerName, u, "application/json")
		},
	})
	if err != nil {
		return nil, err
	}
	return parseSearchDocs(gjson.GetBytes(raw, "docs")), nil
}

// SearchBySubject returns up to limit books tagged with the given subject.
func (c *Client) SearchBySubject(ctx context.Context, subject string, limit int) ([]Book, error) {
	subject = strings.ToLower(strings.TrimSpace(subject))
	if subject == "" {
		return nil, fmt.Errorf("openlibrary: empty subject")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	raw, err := c.coord.Fetch(ctx, fetch.Request{
		Provider:  providerName,
		Operation: "subject",
		Params:    map[string]string{"subject": subject, "limit": strconv.Itoa(limit)},
		TTL:       c.ttl,
		Fetch: func(fctx context.Context) ([]byte, error) {
			u := fmt.Sprintf("%s/subjects/%s.json?limit=%d", c.baseURL, url.PathEscape(subject), limit)
			return provider.Get(fctx, c.http, providerName, u, "application/json")
		},
	})
	if err != nil {
		return nil, err
	}

	var books []Book
	gjson.GetBytes(raw, "works").ForEach(func(_, w gjson.Result) bool {
		b := Book{
			ID:    strings.TrimPrefix(w.Get("key").String(), "/works/"),
			Title: w.Get("title").String(),
		}
		w.Get("authors.#.name").ForEach(func(_, a gjson.Result) bool {
			b.Authors = append(b.Authors, a.String())
			return true
		})
		if year := w.Get("first_publish_year").Int(); year > 0 {
			b.FirstPublishYear = int(year)
		}
		if cover := w.Get("cover_id").Int(); cover > 0 {
			b.CoverURL = coverURL(cover)
		}
		b.SourceURL = "https://openlibrary.org/works/" + b.ID
		books = append(books, b)
		return true
	})
	return books, nil
}

// BookByISBN returns the book identified by a 10 or 13 digit ISBN.
func (c *Client) BookByISBN(ctx context.Context, isbn string) (*Book, error) {
	isbn = normalizeISBN(isbn)
	if len(isbn) != 10 && len(isbn) != 13 {
		return nil, fmt.Errorf("openlibrary: invalid isbn %q", isbn)
	}
	raw, err := c.coord.Fetch(ctx, fetch.Request{
		Provider:  providerName,
		Operation: "isbn",
		Params:    map[string]string{"isbn": isbn},
		TTL:       c.ttl,
		Fetch: func(fctx context.Context) ([]byte, error) {
			u := fmt.Sprintf("%s/isbn/%s.json", c.baseURL, isbn)
			return provider.Get(fctx, c.http, providerName, u, "application/json")
		},
	})
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(raw)
	b := &Book{
		ID:        strings.TrimPrefix(doc.Get("key").String(), "/books/"),
		Title:     doc.Get("title").String(),
		PageCount: int(doc.Get("number_of_pages").Int()),
	}
	switch len(isbn) {
	case 10:
		b.ISBN = isbn
	case 13:
		b.ISBN13 = isbn
	}
	if pub := doc.Get("publishers.0"); pub.Exists() {
		b.Publisher = pub.String()
	}
	if cover := doc.Get("covers.0").Int(); cover > 0 {
		b.CoverURL = coverURL(cover)
	}
	b.SourceURL = "https://openlibrary.org/books/" + b.ID
	return b, nil
}

// parseSearchDocs maps /search.json docs into Books.
func parseSearchDocs(docs gjson.Result) []Book {
	var books []Book
	docs.ForEach(func(_, d gjson.Result) bool {
		b := Book{
			ID:               strings.TrimPrefix(d.Get("key").String(), "/works/"),
			Title:            d.Get("title").String(),
			FirstPublishYear: int(d.Get("first_publish_year").Int()),
			PageCount:        int(d.Get("number_of_pages_median").Int()),
		}
		d.Get("author_name").ForEach(func(_, a gjson.Result) bool {
			b.Authors = append(b.Authors, a.String())
			return true
		})
		// Search docs carry mixed-length ISBNs in one array.
		d.Get("isbn").ForEach(func(_, v gjson.Result) bool {
			switch len(v.String()) {
			case 10:
				if b.ISBN == "" {
					b.ISBN = v.String()
				}
			case 13:
				if b.ISBN13 == "" {
					b.ISBN13 = v.String()
				}
			}
			return b.ISBN == "" || b.ISBN13 == ""
		})
		d.Get("subject").ForEach(func(_, s gjson.Result) bool {
			b.Subjects = append(b.Subjects, s.String())
			return len(b.Subjects) < 5
		})
		if pub := d.Get("publisher.0"); pub.Exists() {
			b.Publisher = pub.String()
		}
		if lang := d.Get("language.0"); lang.Exists() {
			b.Language = lang.String()
		}
		if cover := d.Get("cover_i").Int(); cover > 0 {
			b.CoverURL = coverURL(cover)
		}
		b.SourceURL = "https://openlibrary.org/works/" + b.ID
		books = append(books, b)
		return true
	})
	return books
}

func coverURL(id int64) string {
	return fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", id)
}

func normalizeISBN(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
