package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/synonym"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/adminkey"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/reloader"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/metrics"
)

var laws = []corpus.RawRecord{
	{Title: "Labor Code Art. 1", Text: "An employee may terminate the employment contract by written notice.", Source: "https://adilet.example/labor#1"},
	{Title: "Tax Code Art. 5", Text: "A sole proprietor must register before commencing business."},
}

type trackerFunc func(analytics.Event)

func (f trackerFunc) Track(e analytics.Event) { f(e) }

type testServer struct {
	*httptest.Server
	engine *retrieval.SearchEngine
	agg    *analytics.Aggregator
}

func newServer(t *testing.T, src corpus.Source, mutate func(*config.Config)) *testServer {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.RequestTimeout = 2 * time.Second
	if mutate != nil {
		mutate(cfg)
	}

	engine := retrieval.New(synonym.NewExpander(synonym.DefaultTable().Groups), retrieval.DefaultOptions())
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	agg := analytics.NewAggregator(10)
	tracker := trackerFunc(agg.Record)
	rl := reloader.New(engine, src, time.Second, m, tracker)
	if _, err := rl.Reload(context.Background(), reloader.TriggerStartup); err != nil {
		t.Logf("initial load failed: %v", err)
	}

	checker := health.NewChecker()
	checker.Register("corpus", func(context.Context) health.ComponentHealth {
		if engine.Loaded() {
			return health.ComponentHealth{Status: health.StatusUp}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "corpus not loaded"}
	})

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit)
	}
	var admin adminkey.Validator
	if cfg.Admin.Enabled {
		admin = adminkey.NewStore(nil, "", cfg.Admin.Keys)
	}
	h := handler.New(handler.Deps{Engine: engine, Reloader: rl, Tracker: tracker, Metrics: m}, cfg.Search, cfg.Corpus.AllowEmpty)
	srv := httptest.NewServer(New(Services{
		Search:    h,
		Analytics: analytics.NewHandler(agg, nil),
		Health:    checker,
		Limiter:   limiter,
		Admin:     admin,
		Metrics:   m,
	}, cfg))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, engine: engine, agg: agg}
}

func (s *testServer) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(s.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) post(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Post(s.URL+path, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSearchEndpoint(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), nil)

	var resp struct {
		Query      string             `json:"query"`
		Terms      []string           `json:"terms"`
		Intent     string             `json:"intent"`
		Generation uint64             `json:"generation"`
		Results    []retrieval.Result `json:"results"`
	}
	code := s.get(t, "/api/v1/search?q=employee+contract+termination&top_k=5", &resp)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "Labor Code Art. 1", resp.Results[0].Title)
	assert.Contains(t, resp.Results[0].Snippet, "<mark>")
	assert.Equal(t, "employment", resp.Intent)
	assert.Equal(t, uint64(1), resp.Generation)

	stats := s.agg.Stats()
	assert.Equal(t, int64(1), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.Reloads)
}

func TestSearchEmptyQueryIsNotAnError(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), nil)
	var resp struct {
		Results []retrieval.Result `json:"results"`
	}
	assert.Equal(t, http.StatusOK, s.get(t, "/api/v1/search", &resp))
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSearchRejectsMalformedParams(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), nil)
	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, s.get(t, "/api/v1/search?q=tax&top_k=many", &body))
	assert.Contains(t, body["error"], "top_k")
	assert.Equal(t, http.StatusBadRequest, s.get(t, "/api/v1/search?q=tax&min_score=-1", nil))
}

func TestSearchTopKClamped(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), nil)
	var resp struct {
		Results []retrieval.Result `json:"results"`
	}
	require.Equal(t, http.StatusOK, s.get(t, "/api/v1/search?q=employee+register&top_k=0", &resp))
	assert.Len(t, resp.Results, 1)
}

func TestSearchWithoutCorpus(t *testing.T) {
	missing := &corpus.FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}
	s := newServer(t, missing, nil)
	assert.Equal(t, http.StatusServiceUnavailable, s.get(t, "/api/v1/search?q=tax", nil))
	assert.Equal(t, http.StatusServiceUnavailable, s.get(t, "/api/v1/search/context?q=tax", nil))
	assert.Equal(t, http.StatusServiceUnavailable, s.get(t, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, s.post(t, "/api/v1/corpus/reload", nil))

	degraded := newServer(t, missing, func(c *config.Config) { c.Corpus.AllowEmpty = true })
	assert.Equal(t, http.StatusOK, degraded.get(t, "/api/v1/search?q=tax", nil))
	assert.Equal(t, http.StatusOK, degraded.get(t, "/api/v1/search/context?q=tax", nil))
}

func TestReloadAndCorpusStats(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), nil)

	var reloaded map[string]any
	require.Equal(t, http.StatusOK, s.post(t, "/api/v1/corpus/reload", &reloaded))
	assert.Equal(t, 2.0, reloaded["generation"])
	assert.Equal(t, 2.0, reloaded["fragment_count"])

	var stats retrieval.Stats
	require.Equal(t, http.StatusOK, s.get(t, "/api/v1/corpus/stats", &stats))
	assert.Equal(t, uint64(2), stats.Generation)
	assert.Positive(t, stats.Terms)
}

func TestFragmentEndpoint(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), nil)
	var f map[string]any
	require.Equal(t, http.StatusOK, s.get(t, "/api/v1/fragments/1", &f))
	assert.Equal(t, "Tax Code Art. 5", f["title"])

	assert.Equal(t, http.StatusNotFound, s.get(t, "/api/v1/fragments/42", nil))
	assert.Equal(t, http.StatusBadRequest, s.get(t, "/api/v1/fragments/abc", nil))
}

func TestContextEndpoint(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), nil)
	var block retrieval.ContextBlock
	require.Equal(t, http.StatusOK, s.get(t, "/api/v1/search/context?q=employee", &block))
	assert.Contains(t, block.HTML, `<section class="law-fragment">`)
	assert.Contains(t, block.HTML, `href="https://adilet.example/labor#1"`)
	require.Len(t, block.Used, 1)

	assert.Equal(t, http.StatusBadRequest, s.get(t, "/api/v1/search/context?q=employee&top_k=many", nil))
	assert.Equal(t, int64(1), s.agg.Stats().TotalSearches)
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), nil)
	var stats map[string]string
	require.Equal(t, http.StatusOK, s.get(t, "/api/v1/cache/stats", &stats))
	assert.Equal(t, "disabled", stats["status"])
	assert.Equal(t, http.StatusServiceUnavailable, s.post(t, "/api/v1/cache/invalidate", nil))
}

func TestAnalyticsAndHealth(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), nil)
	s.get(t, "/api/v1/search?q=zebra", nil)

	var stats analytics.Stats
	require.Equal(t, http.StatusOK, s.get(t, "/api/v1/analytics", &stats))
	assert.Equal(t, []analytics.QueryCount{{Query: "zebra", Count: 1}}, stats.ZeroResultQueries)

	assert.Equal(t, http.StatusOK, s.get(t, "/health/live", nil))
	assert.Equal(t, http.StatusOK, s.get(t, "/health/ready", nil))
}

func TestRateLimitAndCORS(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.1, Burst: 2}
		c.CORS.AllowedOrigins = []string{"https://app.example"}
	})

	req, err := http.NewRequest(http.MethodGet, s.URL+"/api/v1/search?q=tax", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	assert.Equal(t, http.StatusOK, s.get(t, "/api/v1/corpus/stats", nil))
	assert.Equal(t, http.StatusTooManyRequests, s.get(t, "/api/v1/corpus/stats", nil))
	assert.Equal(t, http.StatusOK, s.get(t, "/health/live", nil))
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), nil)
	resp, err := http.Get(s.URL + "/api/v2/search")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"))
}

func TestAdminKeyGuardsMutatingEndpoints(t *testing.T) {
	s := newServer(t, corpus.NewStaticSource("static", laws), func(c *config.Config) {
		c.Admin.Enabled = true
		c.Admin.Keys = []string{"s3cret"}
	})

	assert.Equal(t, http.StatusUnauthorized, s.post(t, "/api/v1/corpus/reload", nil))
	assert.Equal(t, http.StatusUnauthorized, s.post(t, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, s.get(t, "/api/v1/search?q=employee", nil))

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/v1/corpus/reload", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Key", "s3cret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(2), s.engine.Stats().Generation)
}
