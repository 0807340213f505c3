package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics for the relay.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	UpstreamTotal   *prometheus.CounterVec
	PromptTokens    prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerchat_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgerchat_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledgerchat_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerchat_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		UpstreamTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerchat_upstream_requests_total",
				Help: "Total number of upstream completion calls by outcome",
			},
			[]string{"outcome"},
		),
		PromptTokens: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledgerchat_prompt_tokens",
				Help:    "Estimated token count of outbound prompts",
				Buckets: prometheus.ExponentialBuckets(16, 2, 10),
			},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// ObserveUpstream records the outcome of one upstream call. Success is
// recorded as "ok"; failures use the upstream HTTP status when one exists
// and "transport_error" otherwise.
func (m *Metrics) ObserveUpstream(status int, err error) {
	switch {
	case err == nil:
		m.UpstreamTotal.WithLabelValues("ok").Inc()
	case status > 0:
		m.UpstreamTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	default:
		m.UpstreamTotal.WithLabelValues("transport_error").Inc()
	}
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
