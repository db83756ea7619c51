// Package metrics registers the Prometheus collectors shared by the API and
// the report worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	OutcomeOK             = "ok"
	OutcomeBlobFailed     = "blob_failed"
	OutcomeMetadataFailed = "metadata_failed"
	OutcomeBusy           = "busy"
	OutcomeForbidden      = "forbidden"
	OutcomeNotFound       = "not_found"
	OutcomeExportFailed   = "export_failed"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hi_uploads_total",
		Help: "Upload create attempts by outcome.",
	}, []string{"outcome"})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hi_deletes_total",
		Help: "Upload delete attempts by outcome.",
	}, []string{"outcome"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hi_upload_bytes_total",
		Help: "Bytes written to the blob store.",
	})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hi_upload_operation_duration_seconds",
		Help:    "Duration of upload coordinator operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	consistencyGapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hi_consistency_gaps_total",
		Help: "Two-phase operations that left the blob and metadata stores diverged.",
	}, []string{"gap"})

	matrixCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hi_matrix_cache_hits_total",
		Help: "Completion matrix cache hits.",
	})
	matrixCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hi_matrix_cache_misses_total",
		Help: "Completion matrix cache misses.",
	})

	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hi_reports_exported_total",
		Help: "Owner reports exported by the report worker.",
	}, []string{"outcome"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hi_http_requests_total",
		Help: "HTTP requests by route pattern and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hi_http_request_duration_seconds",
		Help:    "HTTP request duration by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func UploadAttempt(outcome string, bytes int) {
	uploadsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		uploadBytesTotal.Add(float64(bytes))
	}
}

func DeleteAttempt(outcome string) {
	deletesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records how long operation took since start.
func ObserveDuration(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func ConsistencyGap(gap string) {
	consistencyGapsTotal.WithLabelValues(gap).Inc()
}

func MatrixCache(hit bool) {
	if hit {
		matrixCacheHits.Inc()
		return
	}
	matrixCacheMisses.Inc()
}

func ReportExported(outcome string) {
	reportsTotal.WithLabelValues(outcome).Inc()
}
