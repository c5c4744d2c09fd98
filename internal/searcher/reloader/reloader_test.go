package reloader

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/metrics"
)

type trackerFunc func(analytics.Event)

func (f trackerFunc) Track(e analytics.Event) { f(e) }

func reloads(t *testing.T, m *metrics.Metrics, trigger, status string) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.CorpusReloadsTotal.WithLabelValues(trigger, status).Write(&out))
	return out.GetCounter().GetValue()
}

func TestReloadSuccess(t *testing.T) {
	engine := retrieval.New(nil, retrieval.DefaultOptions())
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	var events []analytics.Event
	r := New(engine, corpus.NewStaticSource("static", []corpus.RawRecord{
		{Title: "Tax Code Art. 5", Text: "A sole proprietor must register."},
	}), time.Second, m, trackerFunc(func(e analytics.Event) { events = append(events, e) }))

	stats, err := r.Reload(context.Background(), TriggerHTTP)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FragmentCount)
	assert.Equal(t, uint64(1), stats.Generation)
	assert.Equal(t, 1.0, reloads(t, m, TriggerHTTP, "success"))
	require.Len(t, events, 1)
	assert.Equal(t, analytics.EventReload, events[0].Type)
	assert.Equal(t, "success", events[0].Status)
}

func TestReloadFailureKeepsServing(t *testing.T) {
	engine := retrieval.New(nil, retrieval.DefaultOptions())
	_, err := engine.Load(context.Background(), corpus.NewStaticSource("seed", []corpus.RawRecord{{Text: "court fine"}}))
	require.NoError(t, err)

	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	r := New(engine, &corpus.FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}, 0, m, nil)
	stats, err := r.Reload(context.Background(), TriggerKafka)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorpusUnavailable)
	assert.Equal(t, uint64(1), stats.Generation)
	assert.Equal(t, 1.0, reloads(t, m, TriggerKafka, "failed"))
}

type slowSource struct {
	started chan struct{}
	once    sync.Once
}

func (s *slowSource) Name() string { return "slow" }

func (s *slowSource) Read(ctx context.Context) (corpus.Records, error) {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	return corpus.Records{}, ctx.Err()
}

func TestReloadTimeout(t *testing.T) {
	engine := retrieval.New(nil, retrieval.DefaultOptions())
	r := New(engine, &slowSource{started: make(chan struct{})}, 20*time.Millisecond, nil, nil)
	_, err := r.Reload(context.Background(), TriggerHTTP)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

type sleepySource struct {
	delay time.Duration
}

func (s *sleepySource) Name() string { return "sleepy" }

func (s *sleepySource) Read(context.Context) (corpus.Records, error) {
	time.Sleep(s.delay)
	return corpus.Records{Items: []corpus.RawRecord{{Title: "Tax Code Art. 5", Text: "tax return"}}}, nil
}

func TestReloadTimeoutNeverSwaps(t *testing.T) {
	engine := retrieval.New(nil, retrieval.DefaultOptions())
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	r := New(engine, &sleepySource{delay: 60 * time.Millisecond}, 10*time.Millisecond, m, nil)

	stats, err := r.Reload(context.Background(), TriggerHTTP)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Zero(t, stats.Generation)
	assert.Equal(t, 1.0, reloads(t, m, TriggerHTTP, "failed"))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, engine.Stats().Generation)
	assert.False(t, engine.Loaded())

	_, err = engine.Load(context.Background(), corpus.NewStaticSource("next", []corpus.RawRecord{{Text: "court fine"}}))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), engine.Stats().Generation)
}

func TestReloadConflict(t *testing.T) {
	engine := retrieval.New(nil, retrieval.DefaultOptions())
	src := &slowSource{started: make(chan struct{})}
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	r := New(engine, src, 0, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Reload(ctx, TriggerHTTP)
	}()
	<-src.started

	_, err := r.Reload(context.Background(), TriggerKafka)
	assert.True(t, errors.Is(err, apperrors.ErrReloadInProgress))
	assert.Equal(t, 1.0, reloads(t, m, TriggerKafka, "conflict"))
	cancel()
	<-done
}

func TestHandleMessage(t *testing.T) {
	engine := retrieval.New(nil, retrieval.DefaultOptions())
	r := New(engine, corpus.NewStaticSource("static", []corpus.RawRecord{{Text: "divorce court"}}), 0, nil, nil)
	h := r.HandleMessage()

	require.NoError(t, h(context.Background(), kafka.Message{Value: []byte(`{"reason":"import finished"}`)}))
	require.NoError(t, h(context.Background(), kafka.Message{Value: []byte(`garbage`)}))
	assert.Equal(t, uint64(2), engine.Stats().Generation)
}
