// Package handler serves the search API over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/reloader"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/tracing"
)

type Engine interface {
	Execute(ctx context.Context, req retrieval.Request) *retrieval.Response
	Stats() retrieval.Stats
	Loaded() bool
	Fragment(id int) (*corpus.LawFragment, error)
}

type Reloader interface {
	Reload(ctx context.Context, trigger string) (retrieval.Stats, error)
}

type Tracker interface {
	Track(event analytics.Event)
}

// Deps are the handler's collaborators. Only Engine is required.
type Deps struct {
	Engine   Engine
	Reloader Reloader
	Cache    *cache.QueryCache
	Tracker  Tracker
	Tracer   *tracing.Tracer
	Metrics  *metrics.Metrics
}

type Handler struct {
	Deps
	defaultTopK int
	maxTopK     int
	allowEmpty  bool
	logger      *slog.Logger
}

func New(deps Deps, search config.SearchConfig, allowEmpty bool) *Handler {
	return &Handler{
		Deps:        deps,
		defaultTopK: search.DefaultTopK,
		maxTopK:     search.MaxTopK,
		allowEmpty:  allowEmpty,
		logger:      slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET /api/v1/search?q=&top_k=&min_score=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.run(w, r, "search")
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Context serves GET /api/v1/search/context: the same search rendered as
// an HTML block plus the list of sources used.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.run(w, r, "search-context")
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, retrieval.RenderContext(resp.Results))
}

// run parses and executes a search request with tracing, metrics, logging
// and analytics. It writes the error response itself and reports false
// when the request cannot be served.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, endpoint string) (*retrieval.Response, bool) {
	start := time.Now()
	req, err := h.parseRequest(r)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	if !h.Engine.Loaded() && !h.allowEmpty {
		h.writeError(w, apperrors.New(apperrors.ErrCorpusUnavailable, http.StatusServiceUnavailable, "corpus not loaded"))
		return nil, false
	}

	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	ctx, span := h.Tracer.Start(ctx, endpoint, requestID)
	resp, cacheStatus := h.execute(ctx, req)
	span.SetAttr("cache", cacheStatus)
	span.SetAttr("results", len(resp.Results))
	h.Tracer.Finish(span)

	latency := time.Since(start)
	h.observe(resp, cacheStatus, latency)
	logger.FromContext(ctx).Info("search completed",
		"endpoint", endpoint,
		"query", req.Query,
		"top_k", req.TopK,
		"candidates", resp.TotalCandidates,
		"returned", len(resp.Results),
		"cache", cacheStatus,
		"generation", resp.Generation,
		"latency_ms", latency.Milliseconds(),
		"stages_ms", span.Stages(),
	)
	if h.Tracker != nil {
		var top float64
		if len(resp.Results) > 0 {
			top = resp.Results[0].Score
		}
		h.Tracker.Track(analytics.Event{
			Type:            analytics.EventSearch,
			RequestID:       requestID,
			Query:           req.Query,
			Terms:           resp.Terms,
			Intent:          resp.Intent.String(),
			Returned:        len(resp.Results),
			TotalCandidates: resp.TotalCandidates,
			TopScore:        top,
			LatencyMs:       latency.Milliseconds(),
			CacheHit:        cacheStatus == "hit",
			Generation:      resp.Generation,
		})
	}
	return resp, true
}

func (h *Handler) execute(ctx context.Context, req retrieval.Request) (*retrieval.Response, string) {
	if h.Cache == nil || strings.TrimSpace(req.Query) == "" {
		return h.Engine.Execute(ctx, req), "bypass"
	}
	gen := h.Engine.Stats().Generation
	resp, hit := h.Cache.GetOrCompute(ctx, req, gen, func() *retrieval.Response {
		return h.Engine.Execute(ctx, req)
	})
	if hit {
		return resp, "hit"
	}
	return resp, "miss"
}

func (h *Handler) observe(resp *retrieval.Response, cacheStatus string, latency time.Duration) {
	if h.Metrics == nil {
		return
	}
	resultType := "results"
	switch {
	case len(resp.Terms) == 0:
		resultType = "empty_query"
	case len(resp.Results) == 0:
		resultType = "no_results"
	}
	h.Metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.Metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.Metrics.SearchResultsCount.Observe(float64(len(resp.Results)))
}

// parseRequest reads q, top_k and min_score. top_k is clamped to
// [1, maxTopK]; malformed numbers are rejected.
func (h *Handler) parseRequest(r *http.Request) (retrieval.Request, error) {
	q := r.URL.Query()
	req := retrieval.Request{Query: q.Get("q"), TopK: h.defaultTopK}
	if v := q.Get("top_k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return req, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "top_k must be an integer, got %q", v)
		}
		req.TopK = k
	}
	req.TopK = min(max(req.TopK, 1), h.maxTopK)
	if v := q.Get("min_score"); v != "" {
		s, err := strconv.ParseFloat(v, 64)
		if err != nil || s < 0 {
			return req, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "min_score must be a non-negative number, got %q", v)
		}
		req.MinScore = s
	}
	return req, nil
}

// Fragment serves GET /api/v1/fragments/{id}.
func (h *Handler) Fragment(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "fragment id must be an integer, got %q", raw))
		return
	}
	f, err := h.Engine.Fragment(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"id":     f.ID,
		"title":  f.Title,
		"source": f.Source,
		"text":   f.Text,
		"length": f.Length(),
	})
}

// Reload serves POST /api/v1/corpus/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.Reloader == nil {
		h.writeError(w, apperrors.New(apperrors.ErrCorpusUnavailable, http.StatusServiceUnavailable, "reload is not configured"))
		return
	}
	stats, err := h.Reloader.Reload(r.Context(), reloader.TriggerHTTP)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"fragment_count": stats.FragmentCount,
		"skipped_count":  stats.SkippedCount,
		"generation":     stats.Generation,
	})
}

// CorpusStats serves GET /api/v1/corpus/stats.
func (h *Handler) CorpusStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Engine.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.Cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrCacheDisabled, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.Cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Server-side failures are logged
// and their details withheld from the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, msg := apperrors.Public(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
