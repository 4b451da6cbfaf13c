// Package events publishes wallet and withdrawal changes to downstream
// consumers after the owning transaction has committed.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/shopspring/decimal"
)

const (
	LedgerEntryCreated  = "ledger.entry.created"
	WithdrawalCreated   = "withdrawal.created"
	WithdrawalCompleted = "withdrawal.completed"
	WithdrawalRejected  = "withdrawal.rejected"
	WithdrawalCancelled = "withdrawal.cancelled"
	WithdrawalExpired   = "withdrawal.expired"
)

type Event struct {
	EventType       string                 `json:"event_type"`
	UserID          int64                  `json:"user_id"`
	WalletID        uint64                 `json:"wallet_id"`
	EntryID         uint64                 `json:"entry_id,omitempty"`
	RequestCode     string                 `json:"request_code,omitempty"`
	TransactionType models.TransactionType `json:"transaction_type,omitempty"`
	Currency        models.CurrencyType    `json:"currency,omitempty"`
	Direction       models.Direction       `json:"direction,omitempty"`
	Status          string                 `json:"status"`
	Amount          decimal.Decimal        `json:"amount"`
	BalanceAfter    decimal.Decimal        `json:"balance_after"`
	Fee             decimal.Decimal        `json:"fee,omitempty"`
	ReferenceType   string                 `json:"reference_type,omitempty"`
	ReferenceID     string                 `json:"reference_id,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

// Key groups a wallet's events on one partition.
func (e *Event) Key() string {
	return strconv.FormatInt(e.UserID, 10)
}

type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

func FromEntry(userID int64, entry *models.LedgerEntry) *Event {
	ev := &Event{
		EventType:       LedgerEntryCreated,
		UserID:          userID,
		WalletID:        entry.WalletID,
		EntryID:         entry.ID,
		TransactionType: entry.Type,
		Currency:        entry.Currency,
		Direction:       entry.Direction,
		Status:          string(entry.Status),
		Fee:             entry.Fee,
		ReferenceType:   entry.ReferenceType,
		ReferenceID:     entry.ReferenceID,
		Timestamp:       entry.CreatedAt,
	}
	switch entry.Currency {
	case models.CurrencyCash:
		ev.Amount = entry.CashAmount.Decimal
		ev.BalanceAfter = entry.CashBalanceAfter.Decimal
	case models.CurrencyCoin:
		if entry.CoinAmount != nil {
			ev.Amount = decimal.NewFromInt(*entry.CoinAmount)
		}
		if entry.CoinBalanceAfter != nil {
			ev.BalanceAfter = decimal.NewFromInt(*entry.CoinBalanceAfter)
		}
	}
	return ev
}

func FromWithdrawal(eventType string, w *models.WithdrawalRequest) *Event {
	return &Event{
		EventType:       eventType,
		UserID:          w.UserID,
		WalletID:        w.WalletID,
		RequestCode:     w.RequestCode,
		TransactionType: models.TxWithdrawalCash,
		Currency:        models.CurrencyCash,
		Status:          string(w.Status),
		Amount:          w.Amount,
		Fee:             w.Fee,
		ReferenceType:   models.RefWithdrawal,
		ReferenceID:     w.RequestCode,
		Timestamp:       w.UpdatedAt,
	}
}

type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }
