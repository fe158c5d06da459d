package middleware

import (
	"strings"

	"github.com/GoPolymarket/paperbot/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

const ContextAddressKey = "address"

// TokenResolver maps a bearer token to the wallet address it was issued for.
type TokenResolver interface {
	Resolve(token string) (string, error)
}

func BearerAuth(tokens TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			_ = c.Error(apperrors.NewUnauthorized("missing bearer token"))
			c.Abort()
			return
		}

		address, err := tokens.Resolve(strings.TrimSpace(token))
		if err != nil {
			_ = c.Error(apperrors.NewUnauthorized("invalid token"))
			c.Abort()
			return
		}

		c.Set(ContextAddressKey, address)
		c.Next()
	}
}
