package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	educache "github.com/openedu/educache/internal"
	"github.com/openedu/educache/internal/provider"
)

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(msg string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = "request_error"
	return e
}

func errorStatus(err error) int {
	var apiErr *provider.APIError
	switch {
	case errors.Is(err, educache.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, educache.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, educache.ErrRateLimited), errors.Is(err, educache.ErrAcquireTimeout):
		return http.StatusTooManyRequests
	case errors.Is(err, educache.ErrStoreUnavailable), errors.Is(err, educache.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		// Upstream 404s mean the resource does not exist; everything else
		// from upstream is a bad gateway from the caller's view.
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.Is(err, educache.ErrUpstreamFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs fetch-layer failures and maps them to a response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
		)
	}
	writeJSON(w, status, errorResponse(err.Error()))
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc
// that Header.Set creates on every call. Saves 1 alloc/req.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
