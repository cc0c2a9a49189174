package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ppdb-admissions-api/internal/service"
)

// unmatchedRoute labels requests that hit no registered route, so raw URLs
// (which embed path and application ids) never become label values.
const unmatchedRoute = "unmatched"

var opsRoutes = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/ready":   {},
}

// Metrics records latency and status per route pattern. Probe and scrape
// endpoints are not recorded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ops := opsRoutes[route]; metricsSvc == nil || ops {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
