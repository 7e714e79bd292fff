package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ObserveRequest("GET", "/api/forms", 200, 20*time.Millisecond)
	m.ObserveRequest("GET", "/api/forms", 200, 10*time.Millisecond)
	m.ObserveRequest("POST", "", 404, time.Millisecond)
	m.SubmissionAccepted()
	m.UploadStored(1024)
	m.UploadStored(0)
	m.WebhookDelivery(OutcomeDelivered)
	m.WebhookDelivery(OutcomeRetry)
	m.WebhookDelivery(OutcomeRetry)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/forms", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "unmatched", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.uploadBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.webhookDeliveries.WithLabelValues(OutcomeRetry)))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SubmissionAccepted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "formdesk_submissions_total 1"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/", 200, time.Millisecond)
		m.SubmissionAccepted()
		m.UploadStored(10)
		m.WebhookDelivery(OutcomeFailed)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
