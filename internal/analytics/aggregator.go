package analytics

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// latencyWindow bounds the samples kept for percentiles.
const latencyWindow = 10000

type Stats struct {
	TotalSearches     int64            `json:"total_searches"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	Reloads           int64            `json:"reloads"`
	FailedReloads     int64            `json:"failed_reloads"`
	LastGeneration    uint64           `json:"last_generation"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	Intents           map[string]int64 `json:"intents"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running totals. It implements Sink so the
// collector can feed it directly when Kafka is not configured.
type Aggregator struct {
	mu sync.RWMutex

	totalSearches  int64
	cacheHits      int64
	cacheMisses    int64
	zeroResults    int64
	reloads        int64
	failedReloads  int64
	lastGeneration uint64

	latencies   []int64
	next        int
	queryCounts map[string]int64
	zeroQueries map[string]int64
	intents     map[string]int64

	topN      int
	startTime time.Time
	logger    *slog.Logger
}

func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		latencies:   make([]int64, 0, 1024),
		queryCounts: make(map[string]int64),
		zeroQueries: make(map[string]int64),
		intents:     make(map[string]int64),
		topN:        topN,
		startTime:   time.Now(),
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) Publish(_ context.Context, events []Event) error {
	for _, e := range events {
		a.Record(e)
	}
	return nil
}

func (a *Aggregator) Record(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch e.Type {
	case EventSearch:
		a.recordSearch(e)
	case EventReload:
		a.reloads++
		if e.Status != "success" {
			a.failedReloads++
		}
		if e.Generation > a.lastGeneration {
			a.lastGeneration = e.Generation
		}
	default:
		a.logger.Debug("ignoring unknown event type", "type", e.Type)
	}
}

func (a *Aggregator) recordSearch(e Event) {
	a.totalSearches++
	if e.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if e.Generation > a.lastGeneration {
		a.lastGeneration = e.Generation
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.next] = e.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
	if e.Intent != "" {
		a.intents[e.Intent]++
	}

	q := normalizeQuery(e.Query)
	if q == "" {
		return
	}
	a.queryCounts[q]++
	if e.Returned == 0 {
		a.zeroResults++
		a.zeroQueries[q]++
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalSearches:     a.totalSearches,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		Reloads:           a.reloads,
		FailedReloads:     a.failedReloads,
		LastGeneration:    a.lastGeneration,
		TopQueries:        topN(a.queryCounts, a.topN),
		ZeroResultQueries: topN(a.zeroQueries, a.topN),
		Intents:           make(map[string]int64, len(a.intents)),
	}
	for k, v := range a.intents {
		stats.Intents[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// Restore seeds the counters from a persisted snapshot. Latency samples
// are not persisted and start empty.
func (a *Aggregator) Restore(s Stats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches += s.TotalSearches
	a.cacheHits += s.CacheHits
	a.cacheMisses += s.CacheMisses
	a.zeroResults += s.ZeroResultCount
	a.reloads += s.Reloads
	a.failedReloads += s.FailedReloads
	for _, q := range s.TopQueries {
		a.queryCounts[q.Query] += q.Count
	}
	for _, q := range s.ZeroResultQueries {
		a.zeroQueries[q.Query] += q.Count
	}
	for k, v := range s.Intents {
		a.intents[k] += v
	}
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then query ascending.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(x, y QueryCount) int {
		if x.Count != y.Count {
			if x.Count > y.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(x.Query, y.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
