package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leozw/leadboard/internal/metrics"
)

// Metrics records request counts and latencies per tenant and route.
func Metrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		domain := c.GetString("domain")
		if domain == "" {
			domain = "unknown"
		}
		collector.RecordRequest(domain, endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
