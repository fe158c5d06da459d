package handler

import (
	"net/http"

	"github.com/GoPolymarket/paperbot/internal/model"
	"github.com/GoPolymarket/paperbot/internal/pkg/apperrors"
	"github.com/GoPolymarket/paperbot/internal/service"
	"github.com/gin-gonic/gin"
)

type MarketHandler struct {
	svc *service.MarketService
}

func NewMarketHandler(svc *service.MarketService) *MarketHandler {
	return &MarketHandler{svc: svc}
}

func (h *MarketHandler) List(c *gin.Context) {
	markets, err := h.svc.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, markets)
}

func (h *MarketHandler) Create(c *gin.Context) {
	var req model.MarketCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInvalidRequest, "invalid market: "+err.Error(), err))
		return
	}

	m, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Start is idempotent: starting a running market still answers ok.
func (h *MarketHandler) Start(c *gin.Context) {
	id, ok := marketID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Start(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "started": id})
}

func (h *MarketHandler) Stop(c *gin.Context) {
	id, ok := marketID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Stop(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "stopped": id})
}

func (h *MarketHandler) Delete(c *gin.Context) {
	id, ok := marketID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": id})
}

// PnL handles GET /pnl/:market_id
func (h *MarketHandler) PnL(c *gin.Context) {
	id, ok := marketID(c, "market_id")
	if !ok {
		return
	}
	tick, err := h.svc.LatestPnL(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewPnLResponse(tick))
}
