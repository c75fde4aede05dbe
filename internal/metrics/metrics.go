// Package metrics exposes the service's Prometheus collectors. Collectors
// are registered on the default registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulmoscan_prediction_cache_hits_total",
		Help: "Prediction cache lookups served from cache.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulmoscan_prediction_cache_misses_total",
		Help: "Prediction cache lookups that fell through to inference.",
	})

	CacheDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulmoscan_prediction_cache_degraded_total",
		Help: "Cache operations degraded to miss/no-op by a backend error.",
	})

	ImagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulmoscan_images_processed_total",
		Help: "Images classified successfully, cached or inferred.",
	})

	ImagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulmoscan_images_failed_total",
		Help: "Images that could not be classified.",
	})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulmoscan_jobs_finished_total",
		Help: "Jobs that reached a terminal status.",
	}, []string{"status"})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulmoscan_inference_duration_seconds",
		Help:    "Wall time of inference engine batch calls.",
		Buckets: prometheus.DefBuckets,
	})
)
