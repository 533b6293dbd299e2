// Package metrics exposes the Prometheus instrumentation of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinobot_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dinobot_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Catalog
	CatalogLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinobot_catalog_loads_total",
			Help: "Catalog loads by resulting status",
		},
		[]string{"status"}, // loaded, missing, corrupt
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dinobot_catalog_images",
			Help: "Number of records in the last loaded catalog",
		},
	)

	// Matching
	MatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinobot_match_outcomes_total",
			Help: "Matching requests by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: keywords, photo, exercise; outcome: matched, none, fallback
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dinobot_upload_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 7), // 16KiB .. 64MiB
		},
	)

	DigestScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dinobot_digest_scan_duration_seconds",
			Help:    "Time spent comparing an upload against the catalog files",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Tutor
	TutorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dinobot_tutor_request_duration_seconds",
			Help:    "Duration of tutor completions in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dinobot_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinobot_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinobot_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Ledger
	LedgerWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dinobot_ledger_write_errors_total",
			Help: "Upload ledger inserts that failed",
		},
	)
)

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCatalogLoad records a catalog load and its size.
func RecordCatalogLoad(status string, size int) {
	CatalogLoads.WithLabelValues(status).Inc()
	CatalogSize.Set(float64(size))
}

// RecordMatch records the outcome of a matching request.
func RecordMatch(kind, outcome string) {
	MatchOutcomes.WithLabelValues(kind, outcome).Inc()
}

// RecordUpload records an accepted upload and the time spent scanning for it.
func RecordUpload(size int, scan time.Duration) {
	UploadBytes.Observe(float64(size))
	DigestScanDuration.Observe(scan.Seconds())
}

// RecordTutorRequest records a completed tutor call.
func RecordTutorRequest(duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	TutorRequestDuration.WithLabelValues(result).Observe(duration.Seconds())
}
