package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/GoPolymarket/paperbot/internal/pkg/apperrors"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/gamma"
	"github.com/gin-gonic/gin"
)

// UpstreamChecker reports the health of the market data provider.
type UpstreamChecker interface {
	Status(ctx context.Context) (string, error)
}

// GammaChecker asks the Gamma API for its status.
type GammaChecker struct {
	Client gamma.Client
}

func (g GammaChecker) Status(ctx context.Context) (string, error) {
	status, err := g.Client.Status(ctx)
	return string(status), err
}

type HealthHandler struct {
	upstream UpstreamChecker
	timeout  time.Duration
}

func NewHealthHandler(upstream UpstreamChecker, timeout time.Duration) *HealthHandler {
	return &HealthHandler{upstream: upstream, timeout: timeout}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *HealthHandler) Upstream(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status, err := h.upstream.Status(ctx)
	if err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrUpstream, "upstream unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "upstream": status})
}
