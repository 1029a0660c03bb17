package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.MessageSent("sms", true)
	m.MessageSent("sms", false)
	m.MessageSent("sms", true)
	m.MessageDropped()
	m.SetPendingTimers(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesSent.WithLabelValues("sms", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesSent.WithLabelValues("sms", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesDropped))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pendingTimers))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/update", http.StatusOK, 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `icubam_http_requests_total{method="GET",route="/update",status="200"} 1`)
}
