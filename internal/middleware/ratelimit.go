package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jobeco/fairprice/pkg/errors"
	"github.com/jobeco/fairprice/pkg/logger"
	"github.com/jobeco/fairprice/pkg/metrics"
	"github.com/jobeco/fairprice/pkg/response"
)

// RateLimit allows at most limit requests per client IP and route within
// window. Store failures let the request through.
func RateLimit(store RateStore, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || limit <= 0 || window <= 0 {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := "ratelimit:" + c.ClientIP() + "|" + path

		count, ttl, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("rate store unavailable",
				zap.String("key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		reset := int(math.Ceil(ttl.Seconds()))
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))

		if count > limit {
			metrics.AuthAttempts.WithLabelValues("throttled").Inc()
			c.Header("Retry-After", strconv.Itoa(reset))
			response.Error(c, errors.NewRateLimit("Too many attempts. Please try again later."))
			c.Abort()
			return
		}

		c.Next()
	}
}
