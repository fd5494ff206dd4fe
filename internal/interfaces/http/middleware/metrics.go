package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPRecorder records request metrics.
type HTTPRecorder interface {
	ObserveHTTP(method, path string, status int, d time.Duration)
}

// Metrics records every request under its route template so that path
// parameters do not explode label cardinality.  Unmatched routes are
// recorded as "unmatched".
func Metrics(rec HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		rec.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
