package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansAttachToRoot(t *testing.T) {
	ctx, root := NewTracer(true, 1).Start(context.Background(), "search", "trace-1")
	_, child := StartChildSpan(ctx, "score")
	child.SetAttr("candidates", 3)
	child.End()

	require.Len(t, root.Children, 1)
	assert.Equal(t, "trace-1", root.Children[0].TraceID)
	assert.Equal(t, 3, root.Children[0].Attrs["candidates"])
	assert.True(t, root.sampled)
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestDisabledTracerDoesNotSample(t *testing.T) {
	_, root := NewTracer(false, 1).Start(context.Background(), "search", "t")
	assert.False(t, root.sampled)

	var nilTracer *Tracer
	_, root = nilTracer.Start(context.Background(), "search", "t")
	assert.False(t, root.sampled)
	nilTracer.Finish(root)
	assert.GreaterOrEqual(t, root.Duration, time.Duration(0))
}

func TestUntracedChildIsNil(t *testing.T) {
	ctx := context.Background()
	got, span := StartChildSpan(ctx, "tokenize")
	assert.Nil(t, span)
	assert.Equal(t, ctx, got)
	span.SetAttr("tokens", 1)
	span.End()
	span.Log()
	assert.Nil(t, span.Stages())
}

func TestStages(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "t")
	for _, name := range []string{"tokenize", "score", "score"} {
		_, s := StartChildSpan(ctx, name)
		time.Sleep(time.Millisecond)
		s.End()
	}
	stages := root.Stages()
	require.Len(t, stages, 2)
	assert.Greater(t, stages["score"], stages["tokenize"])
	assert.GreaterOrEqual(t, stages["tokenize"], 1.0)
}
