// Package metrics holds the Prometheus collectors exported on /metrics.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook delivery outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeRetry     = "retry"
	OutcomeFailed    = "failed"
)

// Metrics is the set of formdesk collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	submissions       prometheus.Counter
	uploadBytes       prometheus.Counter
	webhookDeliveries *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "formdesk_http_requests_total",
			Help: "HTTP requests served, by method, route pattern and status code",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formdesk_http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "formdesk_submissions_total",
			Help: "Form submissions accepted",
		}),
		uploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "formdesk_upload_bytes_total",
			Help: "Bytes of uploaded files stored",
		}),
		webhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "formdesk_webhook_deliveries_total",
			Help: "Webhook delivery attempts, by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one served HTTP request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) SubmissionAccepted() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

func (m *Metrics) UploadStored(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.uploadBytes.Add(float64(bytes))
}

func (m *Metrics) WebhookDelivery(outcome string) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(outcome).Inc()
}
