// Package metrics holds the Prometheus collectors shared by every binary.
// Collectors register with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xfeed_http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xfeed_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xfeed_fetch_total",
			Help: "Total number of markup acquisitions by engine and outcome.",
		},
		[]string{"engine", "status"}, // status: success, failure
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xfeed_fetch_duration_seconds",
			Help:    "Duration of markup acquisitions.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"engine"},
	)

	PostsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xfeed_posts_extracted_total",
			Help: "Total number of post records emitted by the pipeline.",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xfeed_notifications_total",
			Help: "Total number of post notifications by sink and outcome.",
		},
		[]string{"sink", "status"},
	)
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ObserveFetch records one acquisition attempt.
func ObserveFetch(engine string, seconds float64, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	FetchTotal.WithLabelValues(engine, status).Inc()
	FetchDuration.WithLabelValues(engine).Observe(seconds)
}

// ObserveNotification records one delivery to a notification sink.
func ObserveNotification(sink string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	NotificationsTotal.WithLabelValues(sink, status).Inc()
}
