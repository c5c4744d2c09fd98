package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/health"
)

type reloadRequest struct {
	Reason string `json:"reason"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[reloadRequest]([]byte(`{"reason":"nightly import"}`))
	require.NoError(t, err)
	assert.Equal(t, "nightly import", got.Reason)

	_, err = DecodeJSON[reloadRequest]([]byte(`not json`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestPublishBatchRejectsUnencodableValue(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "search-analytics")
	defer p.Close()

	err := p.PublishBatch(context.Background(), []Event{{Key: "k", Value: make(chan int)}})
	assert.ErrorContains(t, err, `encoding event "k"`)
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Equal(t, "search-analytics", p.Topic())
}

func TestCheckWithoutBrokersIsDegraded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res := Check(nil)(ctx)
	assert.Equal(t, health.StatusDegraded, res.Status)
	assert.Contains(t, res.Message, "no brokers")
}
