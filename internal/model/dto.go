package model

// NonceRequest is the body of POST /auth/nonce
type NonceRequest struct {
	Address string `json:"address" binding:"required"`
}

type NonceResponse struct {
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

// VerifyRequest is the body of POST /auth/verify
type VerifyRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type TokenResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

// MarketCreateRequest mirrors Market with optional defaults.
type MarketCreateRequest struct {
	Name          string `json:"name" binding:"required,max=200"`
	ExternalID    string `json:"external_id" binding:"required,max=100"`
	BaseSpreadBps *int   `json:"base_spread_bps" binding:"omitempty,gte=0,lte=10000"`
	Enabled       *bool  `json:"enabled"`
}

type MarketResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	ExternalID    string `json:"external_id"`
	BaseSpreadBps int    `json:"base_spread_bps"`
	Enabled       bool   `json:"enabled"`
	Running       bool   `json:"running"`
}

// PnLResponse is served by GET /pnl/:market_id and pushed on the stream
// with Type set to "pnl_tick".
type PnLResponse struct {
	Type      string  `json:"type,omitempty"`
	MarketID  uint    `json:"market_id"`
	PnL       float64 `json:"pnl"`
	Inventory float64 `json:"inventory"`
}

func NewPnLResponse(tick *PnLTick) PnLResponse {
	return PnLResponse{
		MarketID:  tick.MarketID,
		PnL:       tick.PnL.InexactFloat64(),
		Inventory: tick.Inventory.InexactFloat64(),
	}
}
