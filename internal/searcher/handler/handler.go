package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dannyJ848/SOMA-sub037/internal/analytics"
	"github.com/dannyJ848/SOMA-sub037/internal/searcher/cache"
	"github.com/dannyJ848/SOMA-sub037/internal/searcher/executor"
	"github.com/dannyJ848/SOMA-sub037/pkg/contentindex"
	apperrors "github.com/dannyJ848/SOMA-sub037/pkg/errors"
	"github.com/dannyJ848/SOMA-sub037/pkg/logger"
	"github.com/dannyJ848/SOMA-sub037/pkg/metrics"
	"github.com/dannyJ848/SOMA-sub037/pkg/middleware"
	"github.com/dannyJ848/SOMA-sub037/pkg/tracing"
)

// IndexSource yields the snapshot to serve a request from.
type IndexSource interface {
	Current() (*contentindex.Index, error)
}

// Reloader rebuilds the index from the configured corpus source.
type Reloader func(ctx context.Context) (*contentindex.Index, error)

type Config struct {
	DefaultLimit int
	MaxResults   int
	Tracing      bool
}

type Handler struct {
	indexes IndexSource
	cache   *cache.QueryCache
	tracker analytics.Tracker
	metrics *metrics.Metrics
	reload  Reloader
	guard   func(http.Handler) http.Handler
	cfg     Config
	logger  *slog.Logger
}

type Option func(*Handler)

func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithTracker(t analytics.Tracker) Option {
	return func(h *Handler) { h.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithReloader(r Reloader) Option {
	return func(h *Handler) { h.reload = r }
}

// WithAdminGuard wraps the reload and cache-invalidation routes.
func WithAdminGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.guard = mw }
}

func New(indexes IndexSource, cfg Config, opts ...Option) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = contentindex.DefaultLimit
	}
	if cfg.MaxResults < cfg.DefaultLimit {
		cfg.MaxResults = cfg.DefaultLimit
	}
	h := &Handler{
		indexes: indexes,
		cfg:     cfg,
		logger:  slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the content API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", h.Search)
		r.Get("/entries/{id}", h.GetEntry)
		r.Get("/entries/{id}/levels/{level}", h.GetLevel)
		r.Get("/entries/{id}/related", h.GetRelated)
		r.Get("/categories", h.Categories)
		r.Get("/categories/{category}", h.ByCategory)
		r.Get("/count", h.Count)
		r.Get("/cache/stats", h.CacheStats)

		admin := r
		if h.guard != nil {
			admin = r.With(h.guard)
		}
		admin.Post("/cache/invalidate", h.CacheInvalidate)
		admin.Post("/admin/reload", h.Reload)
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	ix, err := h.indexes.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var span *tracing.Span
	if h.cfg.Tracing {
		ctx, span = tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
		defer func() {
			span.End()
			span.Log()
		}()
	}

	exec := ix.Executor()
	plan := exec.Parse(r.URL.Query().Get("q")).WithCategory(r.URL.Query().Get("category"))
	if plan.Empty() {
		h.observeSearch("empty_query", "none", start, 0)
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:   plan.RawQuery,
			Results: []contentindex.ScoredDoc{},
		})
		return
	}

	compute := func() (*executor.SearchResult, error) {
		execCtx, execSpan := tracing.StartChildSpan(ctx, "execute")
		defer execSpan.End()
		res, err := exec.Execute(execCtx, plan, limit)
		if err == nil {
			execSpan.SetAttr("total_hits", res.TotalHits)
		}
		return res, err
	}

	var result *executor.SearchResult
	cacheHit := false
	cacheStatus := "disabled"
	if h.cache != nil {
		cacheCtx, cacheSpan := tracing.StartChildSpan(ctx, "cache")
		result, cacheHit, err = h.cache.GetOrCompute(cacheCtx, ix.Generation(), plan, limit, compute)
		cacheSpan.SetAttr("hit", cacheHit)
		cacheSpan.End()
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		if h.metrics != nil {
			if cacheHit {
				h.metrics.CacheHitsTotal.Inc()
			} else {
				h.metrics.CacheMissesTotal.Inc()
			}
		}
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search execution failed", "query", plan.RawQuery, "error", err)
		h.observeSearch("error", cacheStatus, start, 0)
		h.writeError(w, err)
		return
	}

	latency := time.Since(start)
	resultType := "hit"
	eventType := analytics.EventSearch
	if result.TotalHits == 0 {
		resultType = "zero_result"
		eventType = analytics.EventZeroResult
	}
	h.observeSearch(resultType, cacheStatus, start, len(result.Results))
	if span != nil {
		span.SetAttr("query", plan.RawQuery)
		span.SetAttr("returned", len(result.Results))
	}

	log.Debug("search completed",
		"query", plan.RawQuery,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache", cacheStatus,
		"latency", latency,
	)
	if h.tracker != nil {
		event := analytics.Event{
			Type:          eventType,
			Query:         plan.RawQuery,
			Terms:         plan.Terms,
			Category:      plan.Category,
			TotalHits:     result.TotalHits,
			Returned:      len(result.Results),
			CacheHit:      cacheHit,
			LatencyMicros: latency.Microseconds(),
			Timestamp:     time.Now().UTC(),
			RequestID:     middleware.GetRequestID(ctx),
		}
		if len(result.Results) > 0 {
			event.TopEntryID = result.Results[0].EntryID
		}
		h.tracker.Track(event)
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	ix, err := h.indexes.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	entry, err := ix.Get(id)
	h.trackView(r, id, err == nil)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) GetLevel(w http.ResponseWriter, r *http.Request) {
	ix, err := h.indexes.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	tier, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "level must be an integer"))
		return
	}
	lvl, err := ix.AtLevel(chi.URLParam(r, "id"), tier)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lvl)
}

func (h *Handler) GetRelated(w http.ResponseWriter, r *http.Request) {
	ix, err := h.indexes.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	related, err := ix.Related(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"related": related})
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	ix, err := h.indexes.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"counts":     ix.CategoryCounts(),
		"categories": ix.Categories(),
	})
}

func (h *Handler) ByCategory(w http.ResponseWriter, r *http.Request) {
	ix, err := h.indexes.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	category := chi.URLParam(r, "category")
	entries := ix.ByCategory(category)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"count":    len(entries),
		"entries":  entries,
	})
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	ix, err := h.indexes.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"count": ix.Count()})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	stats := map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  h.cache.BreakerState().String(),
	}
	if ix, err := h.indexes.Current(); err == nil {
		stats["generation"] = ix.Generation()
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reload is not configured"})
		return
	}
	ix, err := h.reload(r.Context())
	if h.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		h.metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("index reload failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "reloaded",
		"source":   ix.Source(),
		"entries":  ix.Count(),
		"built_at": ix.BuiltAt().UTC().Format(time.RFC3339Nano),
	})
}

// parseLimit applies the HTTP limit policy: absent means the default,
// zero or negative means as many as maxResults allows.
func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.cfg.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be an integer")
	}
	if limit <= 0 || limit > h.cfg.MaxResults {
		limit = h.cfg.MaxResults
	}
	return limit, nil
}

func (h *Handler) observeSearch(resultType, cacheStatus string, start time.Time, returned int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(returned))
}

func (h *Handler) trackView(r *http.Request, id string, found bool) {
	if h.tracker == nil {
		return
	}
	h.tracker.Track(analytics.Event{
		Type:      analytics.EventEntryView,
		EntryID:   id,
		Found:     found,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if errors.Is(err, contentindex.ErrNotLoaded) {
		status = http.StatusServiceUnavailable
	}
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
