package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oakandloom/storefront/metrics"
)

// PrometheusMetrics records request count and latency per matched route.
func PrometheusMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
