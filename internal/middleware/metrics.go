package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/division-console/internal/service"
)

// Metrics records request duration per route template. Probe endpoints and websocket
// upgrades are not recorded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || skipMetrics(c) {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

func skipMetrics(c *gin.Context) bool {
	switch c.Request.URL.Path {
	case "/health", "/ready", "/metrics":
		return true
	}
	return c.GetHeader("Upgrade") != ""
}
