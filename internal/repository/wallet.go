package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) GetWalletByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.conn(ctx, tx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet for user %d: %w", userID, err)
	}
	return &wallet, nil
}

// GetWalletForUpdate re-reads the wallet inside tx holding its row lock.
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.forUpdate(r.conn(ctx, tx)).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet for user %d: %w", userID, err)
	}
	return &wallet, nil
}

// CreateWalletIfMissing inserts an empty wallet unless one already exists
// and returns the stored row either way.
func (r *Repository) CreateWalletIfMissing(ctx context.Context, userID int64) (*models.Wallet, bool, error) {
	wallet := models.NewWallet(userID)
	res := r.conn(ctx, nil).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(wallet)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create wallet for user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 1 {
		return wallet, true, nil
	}

	stored, err := r.GetWalletByUserID(ctx, nil, userID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("wallet for user %d vanished after insert conflict", userID)
	}
	return stored, false, nil
}

func (r *Repository) SaveWallet(ctx context.Context, tx *gorm.DB, wallet *models.Wallet) error {
	if err := r.conn(ctx, tx).Save(wallet).Error; err != nil {
		return fmt.Errorf("failed to save wallet %d: %w", wallet.ID, err)
	}
	return nil
}

type WalletTotals struct {
	Wallets       int64
	ActiveWallets int64
	Cash          decimal.Decimal
	FrozenCash    decimal.Decimal
	Coins         int64
	Deposited     decimal.Decimal
	Withdrawn     decimal.Decimal
}

func (r *Repository) GetWalletTotals(ctx context.Context) (*WalletTotals, error) {
	var (
		totals     WalletTotals
		cash       decimal.NullDecimal
		frozenCash decimal.NullDecimal
		deposited  decimal.NullDecimal
		withdrawn  decimal.NullDecimal
	)
	err := r.conn(ctx, nil).Model(&models.Wallet{}).
		Select(`COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			SUM(cash_balance),
			SUM(frozen_cash_balance),
			COALESCE(SUM(coin_balance), 0),
			SUM(total_deposited),
			SUM(total_withdrawn)`, models.WalletActive).
		Row().Scan(&totals.Wallets, &totals.ActiveWallets, &cash, &frozenCash, &totals.Coins, &deposited, &withdrawn)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate wallets: %w", err)
	}
	totals.Cash = cash.Decimal
	totals.FrozenCash = frozenCash.Decimal
	totals.Deposited = deposited.Decimal
	totals.Withdrawn = withdrawn.Decimal
	return &totals, nil
}
