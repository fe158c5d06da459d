package middleware

import (
	"strings"

	"github.com/GoPolymarket/paperbot/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// RequireHTTPS rejects plain-HTTP requests when enabled. A TLS-terminating
// proxy is trusted through X-Forwarded-Proto.
func RequireHTTPS(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled || c.Request.TLS != nil ||
			strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
			c.Next()
			return
		}
		_ = c.Error(apperrors.New(apperrors.ErrForbidden, "HTTPS required", nil))
		c.Abort()
	}
}
