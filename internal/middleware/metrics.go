package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workdesk/workdesk/internal/telemetry"
)

// MetricsMiddleware records request count and duration for every request.
//
// The path label uses c.FullPath(), the matched route template, rather than
// the raw URL. Requests that match no route use "<no-route>" so unhandled
// paths do not inflate label cardinality.
//
// Must be registered after gin.Recovery() so the status set by error
// handlers is captured correctly.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		status := fmt.Sprintf("%d", c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
