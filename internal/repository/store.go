package repository

import (
	"context"
	"errors"

	"github.com/GoPolymarket/paperbot/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Tx is the set of queries the services need. It is satisfied both by a
// transaction handle and by the store itself (auto-commit per call).
type Tx interface {
	MarketByID(ctx context.Context, id uint) (*model.Market, error)
	MarketByExternalID(ctx context.Context, externalID string) (*model.Market, error)
	ListMarkets(ctx context.Context) ([]model.Market, error)
	CreateMarket(ctx context.Context, m *model.Market) error
	DeleteMarket(ctx context.Context, id uint) error

	WalletAuth(ctx context.Context, address string) (*model.WalletAuth, error)
	SaveWalletAuth(ctx context.Context, rec *model.WalletAuth) error

	AppendTick(ctx context.Context, tick *model.PnLTick) error
	LatestTick(ctx context.Context, marketID uint) (*model.PnLTick, error)
}

// Store scopes a unit of work: fn's writes are committed when it returns nil
// and rolled back when it returns an error, panics, or ctx is cancelled.
type Store interface {
	Tx
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}
