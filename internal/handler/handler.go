package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alex-user-go/hotelsearch/internal/middleware"
	"github.com/alex-user-go/hotelsearch/internal/obs"
	"github.com/alex-user-go/hotelsearch/internal/search"
	"github.com/alex-user-go/hotelsearch/internal/search/cache"
	"github.com/alex-user-go/hotelsearch/internal/search/ratelimit"
	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

// CacheHeader reports whether the response came from the result cache.
const CacheHeader = "X-Cache"

// Handler handles HTTP requests.
type Handler struct {
	aggregator  *search.Aggregator
	cache       *cache.Cache
	rateLimiter *ratelimit.Limiter
	metrics     *obs.Metrics
	logger      *slog.Logger
}

// New creates a new Handler.
func New(
	aggregator *search.Aggregator,
	searchCache *cache.Cache,
	rateLimiter *ratelimit.Limiter,
	metrics *obs.Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		aggregator:  aggregator,
		cache:       searchCache,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		logger:      logger,
	}
}

// SearchHandler handles /search requests.
func (h *Handler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	h.metrics.IncRequests()
	requestID := middleware.RequestID(r.Context())

	ip := ExtractIP(r)
	if !h.rateLimiter.Allow(ip) {
		h.metrics.IncRateLimitDrops()
		h.logger.Warn("rate limit exceeded", "request_id", requestID, "ip", ip)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	query, err := ParseSearchParams(r)
	if err == nil {
		query, err = h.aggregator.Prepare(query)
	}
	if err != nil {
		h.logger.Debug("invalid request parameters", "request_id", requestID, "error", err, "ip", ip)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := h.cache.Key(query)
	result, cacheHit, err := h.cache.GetOrFetch(r.Context(), key, func(ctx context.Context) (*types.PaginatedResult, error) {
		return h.aggregator.Search(ctx, query)
	})
	if err != nil {
		var verr *search.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			h.logger.Debug("search abandoned", "request_id", requestID, "error", err)
			writeError(w, http.StatusServiceUnavailable, "search cancelled")
		default:
			h.logger.Error("search failed",
				"request_id", requestID,
				"error", err,
				"location", query.Location,
				"ip", ip,
			)
			writeError(w, http.StatusInternalServerError, "search failed")
		}
		return
	}

	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.IncCacheHits()
	}

	h.logger.Info("search completed",
		"request_id", requestID,
		"location", query.Location,
		"cursor", query.Cursor,
		"limit", query.Limit,
		"total", result.Total,
		"returned", len(result.Hotels),
		"providers_total", result.ProvidersTotal,
		"providers_succeeded", result.ProvidersSucceeded,
		"providers_failed", result.ProvidersFailed,
		"cache", cacheStatus,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(CacheHeader, cacheStatus)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		// Can't change status after WriteHeader, just log
		h.logger.Error("failed to encode response", "request_id", requestID, "error", err)
	}
}

// ParseSearchParams reads the search query from the request. It only checks
// that numeric parameters are integers; the remaining rules are applied by
// the aggregator.
func ParseSearchParams(r *http.Request) (types.SearchQuery, error) {
	values := r.URL.Query()

	query := types.SearchQuery{
		Location: strings.TrimSpace(values.Get("location")),
		CheckIn:  strings.TrimSpace(values.Get("checkIn")),
		CheckOut: strings.TrimSpace(values.Get("checkOut")),
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{"guests", &query.Guests},
		{"cursor", &query.Cursor},
		{"limit", &query.Limit},
	}
	for _, p := range ints {
		raw := strings.TrimSpace(values.Get(p.field))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return query, &search.ValidationError{Field: p.field, Reason: "must be an integer"}
		}
		*p.dst = n
	}

	return query, nil
}

// ExtractIP returns the client IP used as the rate limit key. Only
// RemoteAddr is consulted; forwarding headers are honored when the router
// is configured to rewrite RemoteAddr from them.
func ExtractIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
