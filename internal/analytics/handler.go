package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	defaultTop = 10
	maxTop     = 100
)

// Handler serves the aggregated search analytics: the overall summary,
// the queries nobody found content for, and the most viewed entries.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1/analytics", func(r chi.Router) {
		r.Get("/", h.Stats)
		r.Get("/zero-results", h.ZeroResults)
		r.Get("/entries", h.TopEntries)
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// ZeroResults lists the most frequent queries that matched nothing.
func (h *Handler) ZeroResults(w http.ResponseWriter, r *http.Request) {
	n, ok := h.top(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.ContentGaps(n))
}

func (h *Handler) TopEntries(w http.ResponseWriter, r *http.Request) {
	n, ok := h.top(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.EntryPopularity(n))
}

// top reads ?top=, defaulting to 10 and capping at 100.
func (h *Handler) top(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("top")
	if raw == "" {
		return defaultTop, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be a positive integer"})
		return 0, false
	}
	return min(n, maxTop), true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
