package handler

import (
	"net/http"

	"github.com/GoPolymarket/paperbot/internal/model"
	"github.com/GoPolymarket/paperbot/internal/pkg/apperrors"
	"github.com/GoPolymarket/paperbot/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Nonce handles POST /auth/nonce
func (h *AuthHandler) Nonce(c *gin.Context) {
	var req model.NonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest("address is required"))
		return
	}

	resp, err := h.svc.RequestNonce(c.Request.Context(), req.Address)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Verify handles POST /auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	var req model.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest("address and signature are required"))
		return
	}

	resp, err := h.svc.Verify(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
