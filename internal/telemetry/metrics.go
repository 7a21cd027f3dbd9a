// -------------------------------------------------------------------------------
// Metrics - Prometheus Instrumentation
//
// Project: Streamlo
//
// Prometheus metric definitions for the web service. Tracks request counts and
// latencies, saga outcomes and orphaned resources, entity-store and blob-store
// operation health. All metrics are prefixed with 'streamlo_' for dashboards
// and alerting rules.
// -------------------------------------------------------------------------------

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// -------------------------------------------------------------------------
// METRIC DEFINITIONS
// -------------------------------------------------------------------------

var (
	// --- Request metrics ---

	// RequestsTotal counts all HTTP requests by method, route and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlo_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status_code"},
	)

	// RequestDuration tracks request latency distribution by route.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamlo_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	// InflightRequests tracks currently processing requests.
	InflightRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamlo_inflight_requests",
			Help: "Number of requests currently being processed",
		},
		[]string{"method"},
	)

	// --- Saga metrics ---

	// SagaRuns counts finished sagas by name and outcome state
	// (ok / compensated / orphaned).
	SagaRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlo_saga_runs_total",
			Help: "Total number of saga executions by outcome",
		},
		[]string{"saga", "state"},
	)

	// SagaOrphans counts compensation failures that left a resource behind,
	// by saga and step. A non-zero rate here means out-of-band cleanup work.
	SagaOrphans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlo_saga_orphaned_resources_total",
			Help: "Total number of failed compensations leaving orphaned resources",
		},
		[]string{"saga", "step"},
	)

	// --- Entity store metrics ---

	// StoreRequestsTotal counts entity-store operations by collection,
	// operation and status.
	StoreRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlo_store_requests_total",
			Help: "Total number of entity store operations",
		},
		[]string{"collection", "operation", "status"},
	)

	// StoreDuration tracks entity-store operation latency.
	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamlo_store_duration_seconds",
			Help:    "Entity store operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"collection", "operation"},
	)

	// --- Blob store metrics ---

	// BlobRequestsTotal counts blob-store operations by bucket, operation
	// and status.
	BlobRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlo_blob_requests_total",
			Help: "Total number of blob store operations",
		},
		[]string{"bucket", "operation", "status"},
	)

	// BlobDuration tracks blob-store operation latency.
	BlobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamlo_blob_duration_seconds",
			Help:    "Blob store operation latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"bucket", "operation"},
	)

	// BlobBytesStreamed tracks bytes streamed through the blob adapter.
	BlobBytesStreamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlo_blob_bytes_streamed_total",
			Help: "Total bytes streamed through the blob adapter",
		},
		[]string{"bucket", "direction"},
	)

	// BlobCircuitState reports the blob-store circuit breaker state
	// (0=closed, 1=open, 2=half-open).
	BlobCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamlo_blob_circuit_state",
			Help: "Blob store circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// BlobCircuitTransitionsTotal counts circuit breaker state transitions.
	BlobCircuitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlo_blob_circuit_transitions_total",
			Help: "Total blob store circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	// --- Info metric ---

	// BuildInfo exposes version information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamlo_build_info",
			Help: "Build information for the web service",
		},
		[]string{"version", "go_version"},
	)
)
