package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market is a tracked prediction market. ExternalID is the upstream
// identifier (token id, slug or ticker) handed to the price feed.
type Market struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Name          string `gorm:"size:200;not null" json:"name"`
	ExternalID    string `gorm:"size:100;not null;uniqueIndex" json:"external_id"`
	BaseSpreadBps int    `gorm:"not null" json:"base_spread_bps"`
	Enabled       bool   `gorm:"not null" json:"enabled"`
}

func (Market) TableName() string { return "markets" }

// PnLTick is one persisted loop iteration. Ts is assigned by the store.
type PnLTick struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	MarketID  uint            `gorm:"not null;index:idx_pnl_ticks_market_ts,priority:1" json:"market_id"`
	Ts        time.Time       `gorm:"not null;index:idx_pnl_ticks_market_ts,priority:2" json:"ts"`
	PnL       decimal.Decimal `gorm:"column:pnl;type:numeric(18,6);not null" json:"pnl"`
	Inventory decimal.Decimal `gorm:"type:numeric(18,6);not null" json:"inventory"`
}

func (PnLTick) TableName() string { return "pnl_ticks" }

// WalletAuth holds the single live challenge nonce for an address.
// UpdatedAt is written by the auth service and drives nonce expiry.
type WalletAuth struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Address   string    `gorm:"size:64;not null;uniqueIndex" json:"address"`
	Nonce     string    `gorm:"size:128;not null" json:"nonce"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;not null" json:"updated_at"`
}

func (WalletAuth) TableName() string { return "wallet_auth" }
