// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the relay.
package observability

import "github.com/prometheus/client_golang/prometheus"

// CompletionBuckets defines histogram buckets suited for chat completion
// latencies, ranging from 100ms to 120s.
var CompletionBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// EventsTotal counts processed chat events by type and outcome.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Processed chat events",
		},
		[]string{"type", "outcome"},
	)

	// EventDuration records end-to-end event handling duration in seconds.
	EventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_event_duration_seconds",
			Help:    "Event handling duration",
			Buckets: CompletionBuckets,
		},
		[]string{"type"},
	)

	// InflightEvents tracks the number of events currently being handled.
	InflightEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_inflight_events",
			Help: "Events currently in flight",
		},
	)

	// ProviderRequestsTotal counts requests sent to the upstream API
	// by endpoint (completions, models) and outcome status.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_provider_requests_total",
			Help: "Upstream provider requests",
		},
		[]string{"endpoint", "status"},
	)

	// ProviderLatency records upstream provider latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_provider_latency_seconds",
			Help:    "Upstream provider latency",
			Buckets: CompletionBuckets,
		},
		[]string{"endpoint"},
	)

	// ImageFetchesTotal counts image URL downloads by outcome.
	ImageFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_image_fetches_total",
			Help: "Image downloads",
		},
		[]string{"outcome"},
	)

	// MonitorRunsTotal counts model catalog polls by outcome.
	MonitorRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_monitor_runs_total",
			Help: "Model catalog poll runs",
		},
		[]string{"outcome"},
	)

	// HTTPRequestsTotal counts webhook server requests by method and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// HTTPRequestDuration records webhook server request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "relay_http_request_duration_seconds",
			Help: "HTTP request duration",
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		EventDuration,
		InflightEvents,
		ProviderRequestsTotal,
		ProviderLatency,
		ImageFetchesTotal,
		MonitorRunsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
