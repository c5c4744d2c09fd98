// Package cache keeps rendered search responses in Redis. Keys are derived
// from the query's normalized terms, the effective top_k and min_score,
// and the corpus generation, so a reload never serves stale results even
// before the old keys are flushed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/resilience"
)

const keyPrefix = "lawsearch:search:"

// Store is the subset of the Redis client the cache needs. Get reports a
// missing key with an error for which pkgredis.IsNilError is true.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
	// Breaker is the state of the circuit guarding the store.
	Breaker       string            `json:"breaker"`
	BreakerCounts resilience.Counts `json:"breaker_counts"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
	logger  *slog.Logger
}

// New builds a cache over store. m may be nil.
func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || pkgredis.IsNilError(err)
		},
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Key returns the cache key for req against corpus generation gen.
// Queries that normalize to the same term sequence share a key.
func Key(req retrieval.Request, gen uint64) string {
	raw := strings.Join(tokenizer.Terms(req.Query), " ") +
		"|k=" + strconv.Itoa(req.TopK) +
		"|min=" + strconv.FormatFloat(req.MinScore, 'g', -1, 64) +
		"|gen=" + strconv.FormatUint(gen, 10)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}

// Get returns the cached response for key. Store errors, an open circuit
// and undecodable values all count as misses.
func (c *QueryCache) Get(ctx context.Context, key string) (*retrieval.Response, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var resp retrieval.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache decode failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return &resp, true
}

func (c *QueryCache) Set(ctx context.Context, key string, resp *retrieval.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache encode failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute serves req for generation gen from the cache, or runs
// compute once per key across concurrent callers and stores the result.
// The returned response always carries the caller's own query string. A
// computed response is stored under the generation it was computed on,
// which differs from gen when a swap lands in between.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req retrieval.Request,
	gen uint64,
	compute func() *retrieval.Response,
) (*retrieval.Response, bool) {
	key := Key(req, gen)
	if resp, ok := c.Get(ctx, key); ok {
		resp.Query = req.Query
		return resp, true
	}
	val, _, _ := c.group.Do(key, func() (any, error) {
		resp := compute()
		c.Set(ctx, Key(req, resp.Generation), resp)
		return resp, nil
	})
	shared := *val.(*retrieval.Response)
	shared.Query = req.Query
	return &shared, false
}

// Invalidate deletes every cached response.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Breaker:       c.breaker.Current().String(),
		BreakerCounts: c.breaker.Counts(),
	}
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	return s
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
