package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretdrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secretdrop_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Record lifecycle metrics
	RecordsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretdrop_records_created_total",
			Help: "Total number of records stored",
		},
		[]string{"destroy_on_read"},
	)

	RecordBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "secretdrop_record_bytes",
			Help:    "Size of encoded records in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	RecordsDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretdrop_records_destroyed_total",
			Help: "Total number of records removed before expiry",
		},
		[]string{"reason"},
	)

	// Rate limiting metrics
	AttemptsExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretdrop_attempts_exceeded_total",
			Help: "Total number of attempt cap exceedances",
		},
		[]string{"kind"},
	)

	RequestsLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secretdrop_requests_limited_total",
			Help: "Total number of requests rejected by the request limiter",
		},
	)

	// Storage metrics
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretdrop_store_errors_total",
			Help: "Total number of key-value store errors",
		},
		[]string{"op"},
	)
)

// Destruction reasons.
const (
	ReasonRead    = "read"
	ReasonDeleted = "deleted"
	ReasonPurged  = "attempts_exceeded"
)
