package monitoring

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRequest(t *testing.T) {
	Reset()
	LogRequest(RequestLog{Time: time.Now(), Path: "/r/pkg.json", StatusCode: 200, Latency: 2})
	LogRequest(RequestLog{Time: time.Now(), Path: "/r/pkg.json", StatusCode: 404, Latency: 4})
	LogRequest(RequestLog{Time: time.Now(), Path: "/s/pkg.json", StatusCode: 200, Latency: 6})

	m := CollectMetrics()
	assert.Equal(t, int64(3), m.RequestCount)
	assert.Equal(t, int64(2), m.StatusCodes[200])
	assert.Equal(t, int64(1), m.StatusCodes[404])
	assert.InDelta(t, 4.0, m.AverageLatency, 0.001)
	assert.InDelta(t, 3.0, m.PathLatencies["/r/pkg.json"], 0.001)
	assert.Len(t, m.RecentRequests, 3)
}

func TestRecentRequestsBounded(t *testing.T) {
	Reset()
	for i := 0; i < maxRecentRequests+20; i++ {
		LogRequest(RequestLog{Path: "/s/x.json", StatusCode: 200})
	}
	m := CollectMetrics()
	assert.Len(t, m.RecentRequests, maxRecentRequests)
	assert.Equal(t, int64(maxRecentRequests+20), m.RequestCount)
}

func TestPrometheusHandler(t *testing.T) {
	before := testutil.ToFloat64(CounterIncrements.WithLabelValues(IncrementOK))
	CounterIncrements.WithLabelValues(IncrementOK).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CounterIncrements.WithLabelValues(IncrementOK)))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "edge_counter_increments_total")
}
