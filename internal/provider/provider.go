// Package provider contains shared utilities for the upstream API clients.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/openedu/educache/internal/fetch"
)

// UserAgent identifies this service to upstream APIs. Wikipedia and Open
// Library both ask clients to send a descriptive one.
const UserAgent = "educache/1.0 (https://github.com/openedu/educache)"

// Fetcher is the coordinator surface the API clients consume.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) ([]byte, error)
}

// APIError represents an error response from an upstream API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

// Error returns a formatted error string including provider, status, and body.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// HTTPStatus returns the upstream HTTP status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// ParseAPIError reads up to 4KB from the response body and returns an APIError.
func ParseAPIError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: string(body)}
}

// Get performs a GET against url and returns the response body. Non-200
// statuses become an APIError.
func Get(ctx context.Context, client *http.Client, name, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", name, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: do request: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ParseAPIError(name, resp)
	}
	return io.ReadAll(resp.Body)
}
