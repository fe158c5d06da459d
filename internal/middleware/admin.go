package middleware

import (
	"crypto/subtle"

	"github.com/GoPolymarket/paperbot/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

const HeaderAdminKey = "X-Admin-Key"

// AdminMiddleware guards destructive routes. An empty key disables them.
func AdminMiddleware(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			_ = c.Error(apperrors.New(apperrors.ErrForbidden, "admin key not configured", nil))
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader(HeaderAdminKey)), []byte(adminKey)) != 1 {
			_ = c.Error(apperrors.NewUnauthorized("invalid admin key"))
			c.Abort()
			return
		}
		c.Next()
	}
}
