// Package router assembles the search service's HTTP surface.
//
// Route table:
//
//	GET  /api/v1/search              ranked fragments with snippets
//	GET  /api/v1/search/context      the same search rendered for a prompt
//	GET  /api/v1/fragments/{id}      one fragment of the served corpus
//	GET  /api/v1/corpus/stats        statistics of the served snapshot
//	POST /api/v1/corpus/reload       rebuild the corpus and swap it in
//	GET  /api/v1/cache/stats         result cache hit/miss counters
//	POST /api/v1/cache/invalidate    drop every cached response
//	GET  /api/v1/analytics           aggregated search analytics
//	GET  /api/v1/analytics/history   persisted analytics snapshots
//	GET  /health/live, /health/ready probes
//
// Middleware chain (outermost first):
//
//	Recoverer → RequestID → Logging → Metrics → CORS → RateLimit → Timeout → handler
//
// Reloads are exempt from the request timeout. When Admin is set, reload
// and cache invalidation require an admin key.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/adminkey"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/middleware"
)

// Services are the handlers the router mounts. Analytics, Limiter, Admin
// and Metrics may be nil.
type Services struct {
	Search    *handler.Handler
	Analytics *analytics.Handler
	Health    *health.Checker
	Limiter   *ratelimit.Limiter
	Admin     adminkey.Validator
	Metrics   *metrics.Metrics
}

func New(s Services, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	if s.Metrics != nil {
		r.Use(middleware.Metrics(s.Metrics))
	}
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins, cfg.CORS.MaxAge))
	if s.Limiter != nil {
		r.Use(ratelimit.Middleware(s.Limiter, s.Metrics))
	}

	r.Get("/health/live", s.Health.LiveHandler())
	r.Get("/health/ready", s.Health.ReadyHandler())

	admin := func(h http.HandlerFunc) http.Handler {
		if s.Admin == nil {
			return h
		}
		return adminkey.Middleware(s.Admin)(h)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodPost, "/corpus/reload", admin(s.Search.Reload))

		r.Group(func(r chi.Router) {
			if cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
			}
			r.Get("/search", s.Search.Search)
			r.Get("/search/context", s.Search.Context)
			r.Get("/fragments/{id}", s.Search.Fragment)
			r.Get("/corpus/stats", s.Search.CorpusStats)
			r.Get("/cache/stats", s.Search.CacheStats)
			r.Method(http.MethodPost, "/cache/invalidate", admin(s.Search.CacheInvalidate))
			if s.Analytics != nil {
				r.Get("/analytics", s.Analytics.Stats)
				r.Get("/analytics/history", s.Analytics.History)
			}
		})
	})
	return r
}
