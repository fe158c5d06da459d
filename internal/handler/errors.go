package handler

import (
	"errors"
	"strconv"

	"github.com/GoPolymarket/paperbot/internal/pkg/apperrors"
	"github.com/GoPolymarket/paperbot/internal/service"
	"github.com/gin-gonic/gin"
)

// fail maps service errors onto API errors for the ErrorHandler middleware.
func fail(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, service.ErrInvalidAddress),
		errors.Is(err, service.ErrExternalIDTaken):
		appErr = apperrors.NewInvalidRequest(err.Error())
	case errors.Is(err, service.ErrNoChallenge),
		errors.Is(err, service.ErrChallengeExpired),
		errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrAddressMismatch):
		appErr = apperrors.NewAuthChallenge(err.Error(), nil)
	case errors.Is(err, service.ErrMarketNotFound),
		errors.Is(err, service.ErrNoPnL):
		appErr = apperrors.NewNotFound(err.Error())
	default:
		appErr = apperrors.Internal(err)
	}
	_ = c.Error(appErr)
}

func marketID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		_ = c.Error(apperrors.NewInvalidRequest("invalid market id"))
		return 0, false
	}
	return uint(id), true
}
