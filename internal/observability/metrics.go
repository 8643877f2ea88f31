// Package observability holds the Prometheus collectors and the OpenTelemetry
// tracer shared across the API.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by keyspace and outcome (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_cache_lookups_total",
		Help: "Cache-aside lookups by keyspace and outcome",
	}, []string{"keyspace", "outcome"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// BlobOperations counts blob store calls by driver, operation and result.
	BlobOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_blob_operations_total",
		Help: "Blob store operations by driver, operation and result",
	}, []string{"driver", "operation", "result"})

	// BlobOperationLatency records blob store call latency.
	BlobOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_blob_operation_latency_seconds",
		Help:    "Blob store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver", "operation"})

	// BlobBytesUploaded sums the payload size of successful puts.
	BlobBytesUploaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_blob_bytes_uploaded_total",
		Help: "Bytes written to the blob store",
	}, []string{"driver"})

	// MediaInconsistencies counts the accepted orphan and stale-reference
	// windows left behind by partially failed media operations.
	MediaInconsistencies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_media_inconsistencies_total",
		Help: "Orphaned blobs and stale references left by partial media failures",
	}, []string{"kind"})
)

// ObserveQuery records the latency of a database query.
func ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// TrackBlobCall returns a function that records latency and outcome of one
// blob store call when invoked with its error (e.g. deferred).
func TrackBlobCall(driver, operation string) func(err error) {
	start := time.Now()
	return func(err error) {
		BlobOperationLatency.WithLabelValues(driver, operation).Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "error"
		}
		BlobOperations.WithLabelValues(driver, operation, result).Inc()
	}
}
