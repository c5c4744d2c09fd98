// Package reloader rebuilds the served corpus on demand, from the HTTP
// admin endpoint or from messages on the corpus-reload Kafka topic.
package reloader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/resilience"
)

// Triggers label reloads in metrics and analytics.
const (
	TriggerStartup = "startup"
	TriggerHTTP    = "http"
	TriggerKafka   = "kafka"
)

type Engine interface {
	Load(ctx context.Context, src corpus.Source) (corpus.LoadStats, error)
	Stats() retrieval.Stats
}

type Tracker interface {
	Track(event analytics.Event)
}

// Request is the payload of a corpus-reload message. All fields are
// informational.
type Request struct {
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by"`
}

type Reloader struct {
	engine  Engine
	source  corpus.Source
	timeout time.Duration
	metrics *metrics.Metrics
	tracker Tracker
	logger  *slog.Logger
}

// New returns a Reloader that rebuilds engine from source. A zero timeout
// means no deadline; m and tracker may be nil.
func New(engine Engine, source corpus.Source, timeout time.Duration, m *metrics.Metrics, tracker Tracker) *Reloader {
	return &Reloader{
		engine:  engine,
		source:  source,
		timeout: timeout,
		metrics: m,
		tracker: tracker,
		logger:  slog.Default().With("component", "corpus-reloader", "source", source.Name()),
	}
}

// Reload builds a new snapshot and swaps it in. On failure the previous
// snapshot keeps serving.
func (r *Reloader) Reload(ctx context.Context, trigger string) (retrieval.Stats, error) {
	start := time.Now()
	load := func(ctx context.Context) error {
		_, err := r.engine.Load(ctx, r.source)
		return err
	}
	var err error
	if r.timeout > 0 {
		err = resilience.WithTimeout(ctx, r.timeout, "corpus reload", load)
	} else {
		err = load(ctx)
	}

	status := "success"
	switch {
	case errors.Is(err, apperrors.ErrReloadInProgress):
		status = "conflict"
	case err != nil:
		status = "failed"
	}
	stats := r.engine.Stats()
	if r.metrics != nil {
		r.metrics.CorpusReloadsTotal.WithLabelValues(trigger, status).Inc()
	}
	if r.tracker != nil {
		r.tracker.Track(analytics.Event{
			Type:          analytics.EventReload,
			Trigger:       trigger,
			Status:        status,
			FragmentCount: stats.FragmentCount,
			Generation:    stats.Generation,
			LatencyMs:     time.Since(start).Milliseconds(),
		})
	}
	if err != nil {
		r.logger.Error("corpus reload failed", "trigger", trigger, "status", status, "error", err)
		return stats, err
	}
	r.logger.Info("corpus reloaded",
		"trigger", trigger,
		"fragment_count", stats.FragmentCount,
		"skipped_count", stats.SkippedCount,
		"generation", stats.Generation,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return stats, nil
}

// HandleMessage reloads on every corpus-reload message. Failed reloads are
// logged and acknowledged; a reload already running satisfies the request.
func (r *Reloader) HandleMessage() kafka.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		req, err := kafka.DecodeJSON[Request](msg.Value)
		if err != nil {
			r.logger.Warn("reload message is not JSON, reloading anyway", "offset", msg.Offset)
		}
		r.logger.Info("reload requested", "reason", req.Reason, "requested_by", req.RequestedBy)
		_, _ = r.Reload(ctx, TriggerKafka)
		return nil
	}
}
