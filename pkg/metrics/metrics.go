package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "havacilik"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	ContentOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "content_operations_total", Help: "Content lifecycle operations by resource kind, operation and result."},
		[]string{"kind", "op", "result"},
	)
	StorageCleanupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "storage_cleanup_failures_total", Help: "Stored files that could not be removed after a content change."},
		[]string{"kind"},
	)
	SlugConflictRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "slug_conflict_retries_total", Help: "Persist attempts retried after a concurrent slug collision."},
	)
	UploadsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "uploads_rejected_total", Help: "Uploaded files rejected before storage, by reason."},
		[]string{"reason"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ContentOperations)
	reg.MustRegister(StorageCleanupFailures)
	reg.MustRegister(SlugConflictRetries)
	reg.MustRegister(UploadsRejected)
}
