// Package analytics records what users search for. The search handler
// tracks one Event per request through a non-blocking Collector; events
// reach an Aggregator either in-process or through a Kafka topic, and the
// aggregated Stats are served over HTTP and optionally persisted.
package analytics

import (
	"context"
	"time"
)

type EventType string

const (
	EventSearch EventType = "search"
	EventReload EventType = "corpus_reload"
)

// Event is a single analytics record. Search and reload events share the
// envelope; fields that do not apply stay zero.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`

	Query           string   `json:"query,omitempty"`
	Terms           []string `json:"terms,omitempty"`
	Intent          string   `json:"intent,omitempty"`
	Returned        int      `json:"returned"`
	TotalCandidates int      `json:"total_candidates"`
	TopScore        float64  `json:"top_score"`
	LatencyMs       int64    `json:"latency_ms"`
	CacheHit        bool     `json:"cache_hit"`
	Generation      uint64   `json:"generation"`

	Trigger       string `json:"trigger,omitempty"`
	Status        string `json:"status,omitempty"`
	FragmentCount int    `json:"fragment_count,omitempty"`
}

// Sink receives flushed batches from a Collector.
type Sink interface {
	Publish(ctx context.Context, events []Event) error
}
