package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg)
	m.SetCorpus(11, 2, 3)

	srv, err := Listen("127.0.0.1:0", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "corpus_fragments 11")

	_, err = Listen(srv.Addr(), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	assert.ErrorContains(t, err, "binding metrics listener")
}
