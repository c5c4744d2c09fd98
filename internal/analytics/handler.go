package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultHistory = 24
	maxHistory     = 500
)

// Handler serves aggregated analytics. store may be nil when snapshots are
// not persisted.
type Handler struct {
	aggregator *Aggregator
	store      *SnapshotStore
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator, store *SnapshotStore) *Handler {
	return &Handler{
		aggregator: aggregator,
		store:      store,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves GET /api/v1/analytics[?top=N]. top trims the query lists
// below the configured size.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top, ok := h.intParam(w, r, "top", 0)
	if !ok {
		return
	}
	stats := h.aggregator.Stats()
	if top > 0 {
		stats.TopQueries = trim(stats.TopQueries, top)
		stats.ZeroResultQueries = trim(stats.ZeroResultQueries, top)
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// History serves GET /api/v1/analytics/history[?limit=N], newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "analytics snapshots are disabled"})
		return
	}
	limit, ok := h.intParam(w, r, "limit", defaultHistory)
	if !ok {
		return
	}
	limit = min(limit, maxHistory)
	snaps, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing analytics snapshots failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if snaps == nil {
		snaps = []Stats{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

// intParam reads a positive integer query parameter, writing a 400 and
// returning false when it is malformed.
func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": name + " must be a positive integer"})
		return 0, false
	}
	return n, true
}

func trim(qs []QueryCount, n int) []QueryCount {
	if len(qs) > n {
		return qs[:n]
	}
	return qs
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
