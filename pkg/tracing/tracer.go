package tracing

import (
	"context"
	"math/rand/v2"
)

// Tracer decides which root spans are logged.
type Tracer struct {
	enabled    bool
	sampleRate float64
}

func NewTracer(enabled bool, sampleRate float64) *Tracer {
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1
	}
	return &Tracer{enabled: enabled, sampleRate: sampleRate}
}

// Start opens a root span. Spans are always recorded so that callers can
// read stage durations; only Finish consults the sampling decision. A nil
// Tracer never samples.
func (t *Tracer) Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	ctx, span := StartSpan(ctx, name, traceID)
	span.sampled = t != nil && t.enabled && rand.Float64() < t.sampleRate
	return ctx, span
}

// Finish ends span and logs its tree when it was sampled.
func (t *Tracer) Finish(span *Span) {
	span.End()
	if span != nil && span.sampled {
		span.Log()
	}
}
