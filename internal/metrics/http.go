package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultFailure = "failure"
)

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	prom, ok := m.(*Metrics)
	if !ok {
		// Noop or unknown implementation: record nothing.
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip the metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		prom.HTTPRequestsInFlight.Inc()
		defer prom.HTTPRequestsInFlight.Dec()

		c.Next()

		method := c.Request.Method
		path := normalizePath(c.FullPath())
		status := strconv.Itoa(c.Writer.Status())

		prom.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		prom.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// normalizePath keeps label cardinality bounded: unmatched routes all
// collapse into one bucket.
func normalizePath(routePath string) string {
	if routePath == "" {
		return "unmatched"
	}
	return routePath
}
