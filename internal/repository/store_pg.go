package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoPolymarket/paperbot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore implements Store on top of gorm.
type PostgresStore struct {
	gormTx
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{gormTx{db: db}}
}

func (s *PostgresStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormTx{db: tx, lockRows: true})
	})
}

type gormTx struct {
	db *gorm.DB
	// lockRows makes reads of rows the unit of work rewrites take a row lock
	// (SELECT ... FOR UPDATE), so concurrent transactions on the same row
	// run one after the other.
	lockRows bool
}

func (t gormTx) MarketByID(ctx context.Context, id uint) (*model.Market, error) {
	var m model.Market
	if err := t.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (t gormTx) MarketByExternalID(ctx context.Context, externalID string) (*model.Market, error) {
	var m model.Market
	err := t.db.WithContext(ctx).Where("external_id = ?", externalID).First(&m).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (t gormTx) ListMarkets(ctx context.Context) ([]model.Market, error) {
	var markets []model.Market
	if err := t.db.WithContext(ctx).Order("id").Find(&markets).Error; err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	return markets, nil
}

func (t gormTx) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := t.db.WithContext(ctx).Create(m).Error; err != nil {
		return mapErr(err)
	}
	return nil
}

// DeleteMarket removes the market and its ticks.
func (t gormTx) DeleteMarket(ctx context.Context, id uint) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("market_id = ?", id).Delete(&model.PnLTick{}).Error; err != nil {
			return fmt.Errorf("delete ticks: %w", err)
		}
		res := tx.Delete(&model.Market{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete market: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (t gormTx) WalletAuth(ctx context.Context, address string) (*model.WalletAuth, error) {
	var rec model.WalletAuth
	if err := t.walletAuthQuery(ctx, address).First(&rec).Error; err != nil {
		return nil, mapErr(err)
	}
	return &rec, nil
}

// walletAuthQuery selects the challenge row for address. Inside a
// transaction the row stays locked until commit, so a second verification
// of the same nonce reads the rotated value.
func (t gormTx) walletAuthQuery(ctx context.Context, address string) *gorm.DB {
	q := t.db.WithContext(ctx).Where("address = ?", address)
	if t.lockRows {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

// SaveWalletAuth inserts the record or replaces nonce and updated_at of the
// existing row for the same address.
func (t gormTx) SaveWalletAuth(ctx context.Context, rec *model.WalletAuth) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"nonce", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("save wallet auth: %w", err)
	}
	return nil
}

func (t gormTx) AppendTick(ctx context.Context, tick *model.PnLTick) error {
	if tick.Ts.IsZero() {
		tick.Ts = time.Now().UTC()
	}
	if err := t.db.WithContext(ctx).Create(tick).Error; err != nil {
		return fmt.Errorf("append tick: %w", err)
	}
	return nil
}

func (t gormTx) LatestTick(ctx context.Context, marketID uint) (*model.PnLTick, error) {
	var tick model.PnLTick
	err := t.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("ts DESC").Order("id DESC").
		First(&tick).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &tick, nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
