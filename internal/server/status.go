package server

import (
	"net/http"
	"time"

	educache "github.com/openedu/educache/internal"
)

// defaultUsageWindow is the trailing window for /v1/status and /v1/usage
// when the caller does not specify one.
const defaultUsageWindow = time.Hour

type statusResponse struct {
	Cache    educache.CacheStats    `json:"cache"`
	Limits   []educache.RateStatus  `json:"limits"`
	Breakers map[string]string      `json:"breakers,omitempty"`
	Usage    *educache.UsageSummary `json:"usage,omitempty"`
	Errors   map[string]string      `json:"errors,omitempty"`
}

// handleStatus reports cache counters, every provider's rate budget, and
// the trailing hour's usage in one response.
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Cache:    s.deps.Coordinator.CacheStats(r.Context()),
		Limits:   s.deps.Coordinator.Snapshot(),
		Breakers: s.deps.Coordinator.BreakerStates(),
	}
	summary, err := s.deps.Coordinator.Aggregate(r.Context(), defaultUsageWindow)
	if err != nil {
		// Usage is the only part backed solely by the store; report the
		// degradation instead of failing the whole status call.
		resp.Errors = map[string]string{"usage": err.Error()}
	} else {
		resp.Usage = summary
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleUsage(w http.ResponseWriter, r *http.Request) {
	window := defaultUsageWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid window: "+raw))
			return
		}
		window = d
	}

	summary, err := s.deps.Coordinator.Aggregate(r.Context(), window)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *server) handleLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.deps.Coordinator.Snapshot(),
	})
}

func (s *server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing key parameter"))
		return
	}
	if err := s.deps.Coordinator.Invalidate(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
