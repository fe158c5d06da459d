package middleware

import (
	"context"

	"github.com/GoPolymarket/paperbot/internal/pkg/apperrors"
	"github.com/GoPolymarket/paperbot/internal/pkg/logger"
	"github.com/GoPolymarket/paperbot/internal/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit keys the window by client IP and route.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ok, err := limiter.Allow(c.Request.Context(), c.ClientIP()+path)
		if err != nil {
			// A broken limiter must not lock users out.
			logger.Warn("Rate limiter failed, admitting request", "path", path, "error", err)
			c.Next()
			return
		}
		if !ok {
			metrics.RateLimited.WithLabelValues(path).Inc()
			_ = c.Error(apperrors.New(apperrors.ErrRateLimited, "Too many requests", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
