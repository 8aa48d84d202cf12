package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bookery-social/bookery/internal/rank"
	"github.com/bookery-social/bookery/internal/service"
	"github.com/bookery-social/bookery/pkg/httpx"
	"github.com/bookery-social/bookery/pkg/slogx"
)

// SearchHandler serves GET /v1/search?q=...: semantic ranking of recent book
// postings against the query.
type SearchHandler struct {
	SearchService *service.SearchService
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "query parameter q is required")
		return
	}

	results, err := h.SearchService.Search(ctx, httpx.UserIDFromCtx(ctx), query)
	if err != nil {
		h.writeSearchError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}

// writeSearchError distinguishes the failure kinds callers can act on:
// back off (429), fix configuration (upstream auth), or retry later.
func (h *SearchHandler) writeSearchError(w http.ResponseWriter, log *slog.Logger, err error) {
	var rle *service.RateLimitedError
	switch {
	case errors.As(err, &rle):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rle)))
		httpx.WriteError(w, http.StatusTooManyRequests,
			"rate_limit_exceeded", "search quota exhausted, slow down")
	case errors.Is(err, rank.ErrUpstreamAuth):
		log.Error("ranking service rejected credentials", "err", err)
		httpx.WriteError(w, http.StatusBadGateway,
			"upstream_auth", "the ranking service rejected our credentials")
	case errors.Is(err, rank.ErrUpstreamThrottled):
		log.Warn("ranking service throttled", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"upstream_throttled", "the ranking service is throttling, try again later")
	case errors.Is(err, rank.ErrUpstreamUnavailable):
		log.Error("ranking service unavailable", "err", err)
		httpx.WriteError(w, http.StatusBadGateway,
			"upstream_unavailable", "the ranking service is unavailable")
	default:
		log.Error("search failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "search failed")
	}
}

func retryAfterSeconds(e *service.RateLimitedError) int {
	secs := int(e.RetryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
