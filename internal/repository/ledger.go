package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"gorm.io/gorm"
)

type EntryFilter struct {
	Currency models.CurrencyType
	Type     models.TransactionType
}

// CreateLedgerEntry appends an entry. Entries have no update or delete
// counterpart.
func (r *Repository) CreateLedgerEntry(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) error {
	if err := r.conn(ctx, tx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (r *Repository) FindCompletedEntryByKey(ctx context.Context, tx *gorm.DB, key string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.conn(ctx, tx).
		Where("idempotency_key = ? AND status = ?", key, models.EntryCompleted).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up ledger entry %s: %w", key, err)
	}
	return &entry, nil
}

func (r *Repository) GetLedgerEntry(ctx context.Context, id uint64) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.conn(ctx, nil).First(&entry, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry %d: %w", id, err)
	}
	return &entry, nil
}

func (r *Repository) ListLedgerEntries(ctx context.Context, walletID uint64, filter EntryFilter, page models.Page) ([]models.LedgerEntry, int64, error) {
	q := r.conn(ctx, nil).Model(&models.LedgerEntry{}).Where("wallet_id = ?", walletID)
	if filter.Currency != "" {
		q = q.Where("currency = ?", filter.Currency)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	var entries []models.LedgerEntry
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).Limit(page.Size).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, total, nil
}

// CompletedEntries returns every completed entry of a wallet in commit order.
func (r *Repository) CompletedEntries(ctx context.Context, walletID uint64) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.conn(ctx, nil).
		Where("wallet_id = ? AND status = ?", walletID, models.EntryCompleted).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entries for wallet %d: %w", walletID, err)
	}
	return entries, nil
}

func (r *Repository) CountEntriesByType(ctx context.Context, walletID uint64) (map[models.TransactionType]int64, error) {
	var rows []struct {
		Type  models.TransactionType
		Count int64
	}
	err := r.conn(ctx, nil).Model(&models.LedgerEntry{}).
		Select("type, COUNT(*) AS count").
		Where("wallet_id = ? AND status = ?", walletID, models.EntryCompleted).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	out := make(map[models.TransactionType]int64, len(rows))
	for _, row := range rows {
		out[row.Type] = row.Count
	}
	return out, nil
}
