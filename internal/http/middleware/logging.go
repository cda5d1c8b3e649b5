// README: Request logging and HTTP metrics.
package middleware

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"routetrip/internal/metrics"
)

func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())
		if route == "/metrics" || route == "/health" {
			return
		}
		log.Printf("[http] %s %s %d %s", c.Request.Method, c.Request.URL.Path, status, elapsed.Round(time.Millisecond))
	}
}
