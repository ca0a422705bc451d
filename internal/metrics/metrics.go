// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_api_request_duration_seconds",
			Help:    "Total time taken for requests in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 15, 20, 25, 30, 40, 50, 75, 100, 150, 200, 350, 400, 500, 600},
		},
		[]string{"model", "endpoint"},
	)

	TimeToFirstToken = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_api_time_to_first_token_seconds",
			Help:    "Time to first token in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 15, 20, 25, 30, 40, 50, 75, 100, 150, 200, 350, 400, 500, 600},
		},
		[]string{"model", "endpoint"},
	)

	FramesStreamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_frames_streamed_total",
			Help: "Total number of output frames written to clients",
		},
		[]string{"model", "endpoint"},
	)

	SkippedEventLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_skipped_event_lines_total",
			Help: "Upstream event lines dropped as unparsable",
		},
		[]string{"model", "endpoint"},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_request_count_total",
			Help: "Total number of requests processed",
		},
		[]string{"model", "endpoint", "status"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_cache_hits_total",
			Help: "Response cache hits",
		},
		[]string{"model", "endpoint"},
	)

	InflightRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_api_inflight_requests",
			Help: "Current Inflight Requests",
		},
		[]string{"user_id"},
	)

	CanceledRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_api_canceled_requests",
			Help: "Canceled Requests",
		},
		[]string{"model", "user_id"},
	)

	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_error_count",
			Help: "Error count",
		},
		[]string{"model", "endpoint", "user_id", "from"},
	)

	ResponseCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_api_status_code",
			Help: "Status Codes",
		},
		[]string{"path", "status_code"},
		//we don't need model here because we know what models are being failed from error count
	)
)
