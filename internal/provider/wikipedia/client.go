// Package wikipedia implements the Wikipedia REST API client.
package wikipedia

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
	defaultRestBase   = "https://en.wikipedia.org/api/rest_v1"
	defaultSearchBase = "https://en.wikipedia.org/w/rest.php/v1"
	providerName      = "wikipedia"
)

// Article is a normalized Wikipedia record.
type Article struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Extract      string `json:"extract,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	PageURL      string `json:"page_url,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// Client is the Wikipedia adapter. Summaries and the featured feed use the
// rest_v1 API; search uses the newer rest.php v1 API, which rest_v1 lacks.
type Client struct {
	restBase   string
	searchBase string
	http       *http.Client
	coord      provider.Fetcher
	ttl        time.Duration
}

// New creates a Wikipedia Client. Empty bases get the en.wikipedia.org
// defaults; a nil client gets a 30s timeout.
func New(restBase, searchBase string, client *http.Client, coord provider.Fetcher, ttl time.Duration) *Client {
	if restBase == "" {
		restBase = defaultRestBase
	}
	if searchBase == "" {
		searchBase = defaultSearchBase
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		restBase:   strings.TrimRight(restBase, "/"),
		searchBase: strings.TrimRight(searchBase, "/"),
		http:       client,
		coord:      coord,
		ttl:        ttl,
	}
}

// Name returns the provider identifier used for rate limiting and usage.
func (c *Client) Name() string { return providerName }

// Summary returns the lead-section summary of an article.
func (c *Client) Summary(ctx context.Context, title string) (*Article, error) {
	title = normalizeTitle(title)
	if title == "" {
		return nil, fmt.Errorf("wikipedia: empty title")
	}
	raw, err := c.coord.Fetch(ctx, fetch.Request{
		Provider:  providerName,
		Operation: "summary",
		Params:    map[string]string{"title": title},
		TTL:       c.ttl,
		Fetch: func(fctx context.Context) ([]byte, error) {
			u := c.restBase + "/page/summary/" + url.PathEscape(title)
			return provider.Get(fctx, c.http, providerName, u, "application/json")
		},
	})
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(raw)
	return &Article{
		Title:        doc.Get("title").String(),
		Description:  doc.Get("description").String(),
		Extract:      doc.Get("extract").String(),
		ThumbnailURL: doc.Get("thumbnail.source").String(),
		PageURL:      doc.Get("content_urls.desktop.page").String(),
		LastModified: doc.Get("timestamp").String(),
	}, nil
}

// Search returns up to limit articles matching the query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Article, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("wikipedia: empty query")
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
			u := fmt.Sprintf("%s/search/page?q=%s&limit=%d", c.searchBase, url.QueryEscape(query), limit)
			return provider.Get(fctx, c.http, providerName, u, "application/json")
		},
	})
	if err != nil {
		return nil, err
	}

	var articles []Article
	gjson.GetBytes(raw, "pages").ForEach(func(_, p gjson.Result) bool {
		articles = append(articles, Article{
			Title:       p.Get("title").String(),
			Description: p.Get("description").String(),
			Extract:     p.Get("excerpt").String(),
			PageURL:     "https://en.wikipedia.org/wiki/" + url.PathEscape(normalizeTitle(p.Get("key").String())),
		})
		return true
	})
	return articles, nil
}

// Featured returns the featured article for the given date.
func (c *Client) Featured(ctx context.Context, day time.Time) (*Article, error) {
	date := day.UTC().Format("2006/01/02")
	raw, err := c.coord.Fetch(ctx, fetch.Request{
		Provider:  providerName,
		Operation: "featured",
		Params:    map[string]string{"date": date},
		TTL:       c.ttl,
		Fetch: func(fctx context.Context) ([]byte, error) {
			u := c.restBase + "/feed/featured/" + date
			return provider.Get(fctx, c.http, providerName, u, "application/json")
		},
	})
	if err != nil {
		return nil, err
	}

	tfa := gjson.GetBytes(raw, "tfa")
	if !tfa.Exists() {
		return nil, fmt.Errorf("wikipedia: no featured article for %s", date)
	}
	return &Article{
		Title:        tfa.Get("title").String(),
		Description:  tfa.Get("description").String(),
		Extract:      tfa.Get("extract").String(),
		ThumbnailURL: tfa.Get("thumbnail.source").String(),
		PageURL:      tfa.Get("content_urls.desktop.page").String(),
		LastModified: tfa.Get("timestamp").String(),
	}, nil
}

// normalizeTitle converts spaces to underscores the way Wikipedia page keys do.
func normalizeTitle(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}
