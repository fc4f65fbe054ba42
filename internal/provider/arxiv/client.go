// Package arxiv implements the arXiv API client. The API speaks Atom XML,
// not JSON, so this is the one client that parses with encoding/xml.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openedu/educache/internal/fetch"
	"github.com/openedu/educache/internal/provider"
)

const (
	defaultBaseURL = "http://export.arxiv.org/api"
	providerName   = "arxiv"
)

// Paper is a normalized arXiv record.
type Paper struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors,omitempty"`
	Abstract   string   `json:"abstract,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Published  string   `json:"published,omitempty"`
	Updated    string   `json:"updated,omitempty"`
	PDFURL     string   `json:"pdf_url,omitempty"`
	SourceURL  string   `json:"source_url,omitempty"`
}

// atomFeed mirrors the subset of the arXiv Atom response we consume.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	Links []struct {
		Href string `xml:"href,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
}

// Client is the arXiv adapter.
type Client struct {
	baseURL string
	http    *http.Client
	coord   provider.Fetcher
	ttl     time.Duration
}

// New creates an arXiv Client. If baseURL is empty it defaults to
// "http://export.arxiv.org/api"; a nil client gets a 60s timeout, since the
// export API can be slow.
func New(baseURL string, client *http.Client, coord provider.Fetcher, ttl time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: client, coord: coord, ttl: ttl}
}

// Name returns the provider identifier used for rate limiting and usage.
func (c *Client) Name() string { return providerName }

// SearchPapers searches across all fields and returns up to limit papers.
func (c *Client) SearchPapers(ctx context.Context, query string, limit int) ([]Paper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("arxiv: empty query")
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
			u := fmt.Sprintf("%s/query?search_query=all:%s&start=0&max_results=%d",
				c.baseURL, url.QueryEscape(query), limit)
			return provider.Get(fctx, c.http, providerName, u, "application/atom+xml")
		},
	})
	if err != nil {
		return nil, err
	}
	return parseFeed(raw)
}

func parseFeed(raw []byte) ([]Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("arxiv: parse feed: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		p := Paper{
			ID:        strings.TrimPrefix(e.ID, "http://arxiv.org/abs/"),
			Title:     collapseSpace(e.Title),
			Abstract:  collapseSpace(e.Summary),
			Published: e.Published,
			Updated:   e.Updated,
			SourceURL: e.ID,
		}
		for _, a := range e.Authors {
			p.Authors = append(p.Authors, a.Name)
		}
		for _, cat := range e.Categories {
			p.Categories = append(p.Categories, cat.Term)
		}
		for _, l := range e.Links {
			if l.Type == "application/pdf" {
				p.PDFURL = l.Href
				break
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// collapseSpace undoes the feed's hard-wrapped whitespace.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
