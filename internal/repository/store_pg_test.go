package repository

import (
	"context"
	"testing"

	"github.com/GoPolymarket/paperbot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB renders SQL without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=paperbot dbname=paperbot sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestWalletAuthLocksRowInsideTransaction(t *testing.T) {
	db := dryRunDB(t)
	ctx := context.Background()
	addr := "0x00000000000000000000000000000000000000aa"

	locked := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rec model.WalletAuth
		return gormTx{db: tx, lockRows: true}.walletAuthQuery(ctx, addr).First(&rec)
	})
	assert.Contains(t, locked, "FOR UPDATE")
	assert.Contains(t, locked, addr)

	plain := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rec model.WalletAuth
		return gormTx{db: tx}.walletAuthQuery(ctx, addr).First(&rec)
	})
	assert.NotContains(t, plain, "FOR UPDATE")
}
