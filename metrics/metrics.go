package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_registrations_total",
			Help: "Account registrations by role",
		},
		[]string{"role"},
	)

	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_chat_requests_total",
			Help: "Assistant requests by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	ChatLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intel_chat_latency_seconds",
			Help:    "Time spent waiting on the generation API",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	CSVRowsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_csv_rows_imported_total",
			Help: "Rows loaded from CSV files by table",
		},
		[]string{"table"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_http_requests_total",
			Help: "HTTP requests by method and status code",
		},
		[]string{"method", "code"},
	)

	HTTPDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intel_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
	)
)
