package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/samiecode/babylon/pkg/common"
	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/metrics"
	"github.com/samiecode/babylon/pkg/ratelimit"
)

// RateLimit throttles each client IP against the group's quota.
func RateLimit(limits *ratelimit.ClientLimits, group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limits.Allow(group, c.ClientIP()) {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		logger.Warn(c, "http rate limited",
			zap.String("ip", c.ClientIP()),
			zap.String("group", group),
			zap.String("route", route),
		)
		metrics.RateLimitBlockTotal.WithLabelValues(route).Inc()
		common.Fail(c, http.StatusTooManyRequests, "too many requests")
		c.Abort()
	}
}
