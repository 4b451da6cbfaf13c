package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (r *Repository) CreateWithdrawal(ctx context.Context, tx *gorm.DB, withdrawal *models.WithdrawalRequest) error {
	if err := r.conn(ctx, tx).Create(withdrawal).Error; err != nil {
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return nil
}

func (r *Repository) SaveWithdrawal(ctx context.Context, tx *gorm.DB, withdrawal *models.WithdrawalRequest) error {
	if err := r.conn(ctx, tx).Save(withdrawal).Error; err != nil {
		return fmt.Errorf("failed to save withdrawal %s: %w", withdrawal.RequestCode, err)
	}
	return nil
}

func (r *Repository) GetWithdrawalByID(ctx context.Context, tx *gorm.DB, id uint64) (*models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest
	err := r.conn(ctx, tx).Where("id = ?", id).First(&withdrawal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal by id %d: %w", id, err)
	}
	return &withdrawal, nil
}

func (r *Repository) GetWithdrawalForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest
	err := r.forUpdate(r.conn(ctx, tx)).Where("id = ?", id).First(&withdrawal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock withdrawal %d: %w", id, err)
	}
	return &withdrawal, nil
}

func (r *Repository) CountHoldingWithdrawals(ctx context.Context, tx *gorm.DB, userID int64) (int64, error) {
	var count int64
	err := r.conn(ctx, tx).Model(&models.WithdrawalRequest{}).
		Where("user_id = ? AND status IN ?", userID, models.HoldingStatuses).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count open withdrawals for user %d: %w", userID, err)
	}
	return count, nil
}

// SumHoldingWithdrawals is the amount that should be frozen on the user's
// wallet right now.
func (r *Repository) SumHoldingWithdrawals(ctx context.Context, tx *gorm.DB, userID int64) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.conn(ctx, tx).Model(&models.WithdrawalRequest{}).
		Where("user_id = ? AND status IN ?", userID, models.HoldingStatuses).
		Select("SUM(amount)").Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum open withdrawals for user %d: %w", userID, err)
	}
	return sum.Decimal, nil
}

func (r *Repository) ListWithdrawalsByUser(ctx context.Context, userID int64, page models.Page) ([]models.WithdrawalRequest, int64, error) {
	q := r.conn(ctx, nil).Model(&models.WithdrawalRequest{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	var withdrawals []models.WithdrawalRequest
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&withdrawals).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list withdrawals for user %d: %w", userID, err)
	}
	return withdrawals, total, nil
}

// ListWithdrawalsByStatus returns the review queue. Pending requests come
// highest priority first, oldest first within a tier.
func (r *Repository) ListWithdrawalsByStatus(ctx context.Context, status models.WithdrawalStatus, page models.Page) ([]models.WithdrawalRequest, int64, error) {
	q := r.conn(ctx, nil).Model(&models.WithdrawalRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	if status == models.WithdrawalPending {
		q = q.Order("priority ASC").Order("created_at ASC")
	} else {
		q = q.Order("created_at DESC")
	}

	var withdrawals []models.WithdrawalRequest
	err := q.Order("id ASC").Offset(page.Offset()).Limit(page.Size).Find(&withdrawals).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list withdrawals by status %s: %w", status, err)
	}
	return withdrawals, total, nil
}

func (r *Repository) ListExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	err := r.conn(ctx, nil).Model(&models.WithdrawalRequest{}).
		Where("status = ? AND expires_at < ?", models.WithdrawalPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired withdrawals: %w", err)
	}
	return ids, nil
}

type WithdrawalTotals struct {
	ByStatus      map[models.WithdrawalStatus]int64
	PendingAmount decimal.Decimal
	PaidOut       decimal.Decimal
	FeesCollected decimal.Decimal
}

func (r *Repository) GetWithdrawalTotals(ctx context.Context, userID *int64) (*WithdrawalTotals, error) {
	base := func() *gorm.DB {
		q := r.conn(ctx, nil).Model(&models.WithdrawalRequest{})
		if userID != nil {
			q = q.Where("user_id = ?", *userID)
		}
		return q
	}

	var rows []struct {
		Status models.WithdrawalStatus
		Count  int64
	}
	if err := base().Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count withdrawals by status: %w", err)
	}

	var pending decimal.NullDecimal
	if err := base().Where("status IN ?", models.HoldingStatuses).Select("SUM(amount)").Row().Scan(&pending); err != nil {
		return nil, fmt.Errorf("failed to sum pending withdrawals: %w", err)
	}

	var paidOut, fees decimal.NullDecimal
	err := base().Where("status = ?", models.WithdrawalCompleted).
		Select("SUM(net_amount), SUM(fee)").
		Row().Scan(&paidOut, &fees)
	if err != nil {
		return nil, fmt.Errorf("failed to sum completed withdrawals: %w", err)
	}

	totals := &WithdrawalTotals{
		ByStatus:      make(map[models.WithdrawalStatus]int64, len(rows)),
		PendingAmount: pending.Decimal,
		PaidOut:       paidOut.Decimal,
		FeesCollected: fees.Decimal,
	}
	for _, row := range rows {
		totals.ByStatus[row.Status] = row.Count
	}
	return totals, nil
}
