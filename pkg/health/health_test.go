package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(s Status) Check {
	return func(context.Context) ComponentHealth { return ComponentHealth{Status: s} }
}

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		required Status
		optional Status
		want     Status
	}{
		{"all up", StatusUp, StatusUp, StatusUp},
		{"optional down degrades", StatusUp, StatusDown, StatusDegraded},
		{"required degraded", StatusDegraded, StatusUp, StatusDegraded},
		{"required down", StatusDown, StatusUp, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.Register("corpus", fixed(tt.required))
			c.RegisterOptional("redis", fixed(tt.optional))
			report := c.Run(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.True(t, report.Components["redis"].Optional)
			assert.NotEmpty(t, report.Components["corpus"].Latency)
		})
	}
}

func TestSlowCheckTimesOut(t *testing.T) {
	c := NewChecker()
	c.SetTimeout(20 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	c.Register("corpus_source", func(ctx context.Context) ComponentHealth {
		<-release
		return ComponentHealth{Status: StatusUp}
	})
	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "check timed out", report.Components["corpus_source"].Message)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("corpus", fixed(StatusUp))
	c.RegisterOptional("kafka", fixed(StatusDown))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("corpus", fixed(StatusDown))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"alive"`)
}
