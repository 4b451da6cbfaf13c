package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxDepositCash       TransactionType = "DEPOSIT_CASH"
	TxWithdrawalCash    TransactionType = "WITHDRAWAL_CASH"
	TxPurchaseCoins     TransactionType = "PURCHASE_COINS"
	TxRefundCash        TransactionType = "REFUND_CASH"
	TxMentorPayout      TransactionType = "MENTOR_PAYOUT"
	TxCoursePurchase    TransactionType = "COURSE_PURCHASE"
	TxEarnCoins         TransactionType = "EARN_COINS"
	TxSpendCoins        TransactionType = "SPEND_COINS"
	TxBonusCoins        TransactionType = "BONUS_COINS"
	TxRefundCoins       TransactionType = "REFUND_COINS"
	TxRewardAchievement TransactionType = "REWARD_ACHIEVEMENT"
	TxDailyLoginBonus   TransactionType = "DAILY_LOGIN_BONUS"
	TxAdminAdjustment   TransactionType = "ADMIN_ADJUSTMENT"
)

// IsEarning reports whether a coin credit of this type counts toward the
// wallet's lifetime earned coins.
func (t TransactionType) IsEarning() bool {
	switch t {
	case TxEarnCoins, TxBonusCoins, TxRewardAchievement, TxDailyLoginBonus:
		return true
	}
	return false
}

type CurrencyType string

const (
	CurrencyCash CurrencyType = "CASH"
	CurrencyCoin CurrencyType = "COIN"

	// only used when reporting a frozen-balance shortfall
	CurrencyFrozenCash CurrencyType = "FROZEN_CASH"
)

type Direction string

const (
	Credit Direction = "CREDIT"
	Debit  Direction = "DEBIT"
)

type EntryStatus string

const (
	EntryCompleted EntryStatus = "COMPLETED"
	EntryFailed    EntryStatus = "FAILED"
	EntryReversed  EntryStatus = "REVERSED"
)

// Reference types used for correlation and idempotency lookups.
const (
	RefPayment      = "PAYMENT"
	RefWithdrawal   = "WITHDRAWAL"
	RefCoinPurchase = "COIN_PURCHASE"
	RefCoinRefund   = "COIN_REFUND"
)

func CourseReference(courseID string) string { return "COURSE_" + courseID }

// PaymentKey is the idempotency key written for credits triggered by an
// external payment notification.
func PaymentKey(c CurrencyType, gatewayRef string) string {
	return RefPayment + ":" + string(c) + ":" + gatewayRef
}

// LedgerEntry is append-only. Exactly one of CashAmount and CoinAmount is
// set, together with the matching post-operation balance.
type LedgerEntry struct {
	ID        uint64          `gorm:"primaryKey" json:"id"`
	WalletID  uint64          `gorm:"index;not null" json:"walletId"`
	Type      TransactionType `gorm:"size:30;not null;index" json:"type"`
	Currency  CurrencyType    `gorm:"size:10;not null" json:"currency"`
	Direction Direction       `gorm:"size:10;not null" json:"direction"`

	CashAmount       decimal.NullDecimal `gorm:"type:numeric(15,2)" json:"cashAmount,omitempty"`
	CoinAmount       *int64              `json:"coinAmount,omitempty"`
	CashBalanceAfter decimal.NullDecimal `gorm:"type:numeric(15,2)" json:"cashBalanceAfter,omitempty"`
	CoinBalanceAfter *int64              `json:"coinBalanceAfter,omitempty"`
	Fee              decimal.Decimal     `gorm:"type:numeric(15,2);not null;default:0" json:"fee"`

	Description    string  `gorm:"size:500" json:"description"`
	Notes          string  `gorm:"type:text" json:"notes,omitempty"`
	ReferenceType  string  `gorm:"size:50;index:idx_ledger_reference" json:"referenceType,omitempty"`
	ReferenceID    string  `gorm:"size:100;index:idx_ledger_reference" json:"referenceId,omitempty"`
	IdempotencyKey *string `gorm:"size:160;uniqueIndex" json:"-"`

	Status    EntryStatus `gorm:"size:20;not null;default:'COMPLETED'" json:"status"`
	CreatedAt time.Time   `gorm:"index" json:"createdAt"`
}

func NewCashEntry(w *Wallet, t TransactionType, dir Direction, amount decimal.Decimal) *LedgerEntry {
	return &LedgerEntry{
		WalletID:         w.ID,
		Type:             t,
		Currency:         CurrencyCash,
		Direction:        dir,
		CashAmount:       decimal.NewNullDecimal(amount),
		CashBalanceAfter: decimal.NewNullDecimal(w.CashBalance),
		Fee:              decimal.Zero,
		Status:           EntryCompleted,
	}
}

func NewCoinEntry(w *Wallet, t TransactionType, dir Direction, amount int64) *LedgerEntry {
	after := w.CoinBalance
	return &LedgerEntry{
		WalletID:         w.ID,
		Type:             t,
		Currency:         CurrencyCoin,
		Direction:        dir,
		CoinAmount:       &amount,
		CoinBalanceAfter: &after,
		Fee:              decimal.Zero,
		Status:           EntryCompleted,
	}
}

func (e *LedgerEntry) WithReference(refType, refID string) *LedgerEntry {
	e.ReferenceType = refType
	e.ReferenceID = refID
	return e
}

// SignedCash is the entry's contribution to the wallet's cash balance.
func (e *LedgerEntry) SignedCash() decimal.Decimal {
	if e.Currency != CurrencyCash || !e.CashAmount.Valid {
		return decimal.Zero
	}
	if e.Direction == Debit {
		return e.CashAmount.Decimal.Neg()
	}
	return e.CashAmount.Decimal
}

func (e *LedgerEntry) SignedCoins() int64 {
	if e.Currency != CurrencyCoin || e.CoinAmount == nil {
		return 0
	}
	if e.Direction == Debit {
		return -*e.CoinAmount
	}
	return *e.CoinAmount
}
