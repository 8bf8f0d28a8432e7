package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_BackendRequests(t *testing.T) {
	m := NewMetrics()

	m.ObserveBackendRequest("submit", 202, 120*time.Millisecond)
	m.ObserveBackendRequest("submit", 0, time.Second)
	m.ObserveBackendRequest("status", 200, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequests.WithLabelValues("submit", "202")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequests.WithLabelValues("submit", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequests.WithLabelValues("status", "200")))
}

func TestMetrics_Subscriptions(t *testing.T) {
	m := NewMetrics()

	m.SubscriptionOpened()
	m.SubscriptionOpened()
	m.SubscriptionClosed()
	m.ObservePollTick("processing")
	m.ObservePollTick("processing")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscriptions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pollTicks.WithLabelValues("processing")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBackendRequest("submit", 200, time.Millisecond)
		m.ObservePollTick("pending")
		m.SubscriptionOpened()
		m.SubscriptionClosed()
		m.ObserveHTTPRequest("/", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveHTTPRequest("/api/jobs", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `optimizer_http_requests_total{code="200",route="/api/jobs"} 1`)
}
