package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pointflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pointflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	PointTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pointflow_point_transactions_total",
			Help: "Charge and use operations by outcome",
		},
		[]string{"type", "outcome"},
	)

	LockWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pointflow_user_lock_wait_seconds",
			Help:    "Time spent waiting for a per-user lock",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"outcome"},
	)

	UserLocksRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pointflow_user_locks_registered",
			Help: "Number of per-user locks in the lock registry",
		},
	)

	WorkerPoolQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pointflow_worker_pool_queue_size",
			Help: "Jobs waiting in the worker pool queue",
		},
	)

	WorkerPoolJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pointflow_worker_pool_jobs_total",
			Help: "Worker pool jobs by outcome",
		},
		[]string{"outcome"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pointflow_cache_hits_total",
			Help: "Balance cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pointflow_cache_misses_total",
			Help: "Balance cache misses",
		},
	)
)

func RecordHttpRequest(method, endpoint, status string, duration time.Duration) {
	HttpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func RecordPointTransaction(txType, outcome string) {
	PointTransactionsTotal.WithLabelValues(txType, outcome).Inc()
}

func RecordLockWait(outcome string, wait time.Duration, registered int) {
	LockWaitDuration.WithLabelValues(outcome).Observe(wait.Seconds())
	UserLocksRegistered.Set(float64(registered))
}

func RecordWorkerJob(outcome string, queueSize int) {
	WorkerPoolJobsTotal.WithLabelValues(outcome).Inc()
	WorkerPoolQueueSize.Set(float64(queueSize))
}

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}
