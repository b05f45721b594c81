// Package metrics registers the Prometheus collectors for HTTP traffic and the photo pipelines.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photofolio_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photofolio_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Pipeline metrics, updated from the service and feed packages.
var (
	// UploadsTotal counts upload batch items by result (ok, transfer_error, write_error).
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photofolio_uploads_total",
			Help: "Uploaded photos by result.",
		},
		[]string{"result"},
	)

	// DeletesTotal counts delete requests by result (ok, partial).
	DeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photofolio_deletes_total",
			Help: "Deleted photos by result.",
		},
		[]string{"result"},
	)

	// FeedSubscribers is the number of live gallery feed subscriptions.
	FeedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photofolio_feed_subscribers",
			Help: "Active gallery feed subscriptions.",
		},
	)
)

// Middleware records request count and latency. Routes are labelled by their gin template
// (/api/photos/:id) so photo ids never become label values.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

var (
	// CacheHitsTotal counts photo detail lookups served from memory.
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photofolio_cache_hits_total",
		Help: "Photo detail cache hits.",
	})
	// CacheMissesTotal counts photo detail lookups that went to the database.
	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photofolio_cache_misses_total",
		Help: "Photo detail cache misses.",
	})
)
