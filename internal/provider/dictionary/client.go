// Package dictionary implements the Free Dictionary API client.
package dictionary

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/openedu/educache/internal/fetch"
	"github.com/openedu/educache/internal/provider"
)

const (
	defaultBaseURL = "https://api.dictionaryapi.dev/api/v2"
	providerName   = "dictionary"
)

// Definition is one sense of a word under a part of speech.
type Definition struct {
	PartOfSpeech string `json:"part_of_speech"`
	Text         string `json:"text"`
	Example      string `json:"example,omitempty"`
}

// Entry is a normalized dictionary record for one word.
type Entry struct {
	Word        string       `json:"word"`
	Phonetic    string       `json:"phonetic,omitempty"`
	AudioURL    string       `json:"audio_url,omitempty"`
	Definitions []Definition `json:"definitions"`
	Synonyms    []string     `json:"synonyms,omitempty"`
	SourceURL   string       `json:"source_url,omitempty"`
}

// Client is the Free Dictionary adapter.
type Client struct {
	baseURL string
	http    *http.Client
	coord   provider.Fetcher
	ttl     time.Duration
}

// New creates a dictionary Client. If baseURL is empty it defaults to
// "https://api.dictionaryapi.dev/api/v2"; a nil client gets a 30s timeout.
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

// Define returns the dictionary entry for word in English.
func (c *Client) Define(ctx context.Context, word string) (*Entry, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return nil, fmt.Errorf("dictionary: empty word")
	}
	raw, err := c.coord.Fetch(ctx, fetch.Request{
		Provider:  providerName,
		Operation: "define",
		Params:    map[string]string{"word": word},
		TTL:       c.ttl,
		Fetch: func(fctx context.Context) ([]byte, error) {
			u := c.baseURL + "/entries/en/" + url.PathEscape(word)
			return provider.Get(fctx, c.http, providerName, u, "application/json")
		},
	})
	if err != nil {
		return nil, err
	}

	// The API returns an array of entries; the first carries the primary
	// senses.
	doc := gjson.GetBytes(raw, "0")
	if !doc.Exists() {
		return nil, fmt.Errorf("dictionary: no entry for %q", word)
	}

	e := &Entry{
		Word:     doc.Get("word").String(),
		Phonetic: doc.Get("phonetic").String(),
	}
	doc.Get("phonetics").ForEach(func(_, p gjson.Result) bool {
		if e.Phonetic == "" {
			e.Phonetic = p.Get("text").String()
		}
		if e.AudioURL == "" {
			e.AudioURL = p.Get("audio").String()
		}
		return e.Phonetic == "" || e.AudioURL == ""
	})
	doc.Get("meanings").ForEach(func(_, m gjson.Result) bool {
		pos := m.Get("partOfSpeech").String()
		m.Get("definitions").ForEach(func(_, d gjson.Result) bool {
			e.Definitions = append(e.Definitions, Definition{
				PartOfSpeech: pos,
				Text:         d.Get("definition").String(),
				Example:      d.Get("example").String(),
			})
			return true
		})
		m.Get("synonyms").ForEach(func(_, s gjson.Result) bool {
			e.Synonyms = append(e.Synonyms, s.String())
			return len(e.Synonyms) < 10
		})
		return true
	})
	if src := doc.Get("sourceUrls.0"); src.Exists() {
		e.SourceURL = src.String()
	}
	return e, nil
}
