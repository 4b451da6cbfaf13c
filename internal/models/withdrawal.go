package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "PENDING"
	WithdrawalApproved   WithdrawalStatus = "APPROVED"
	WithdrawalProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalCompleted  WithdrawalStatus = "COMPLETED"
	WithdrawalRejected   WithdrawalStatus = "REJECTED"
	WithdrawalCancelled  WithdrawalStatus = "CANCELLED"
	WithdrawalExpired    WithdrawalStatus = "EXPIRED"
)

// HoldingStatuses are the statuses in which the request amount is frozen.
var HoldingStatuses = []WithdrawalStatus{WithdrawalPending, WithdrawalApproved, WithdrawalProcessing}

func (s WithdrawalStatus) IsHolding() bool {
	for _, h := range HoldingStatuses {
		if s == h {
			return true
		}
	}
	return false
}

func (s WithdrawalStatus) IsFinal() bool {
	switch s {
	case WithdrawalCompleted, WithdrawalRejected, WithdrawalCancelled, WithdrawalExpired:
		return true
	}
	return false
}

func (s WithdrawalStatus) Valid() bool {
	return s.IsHolding() || s.IsFinal()
}

type WithdrawalRequest struct {
	ID          uint64 `gorm:"primaryKey" json:"id"`
	RequestCode string `gorm:"size:40;uniqueIndex;not null" json:"requestCode"`

	UserID        int64   `gorm:"index;not null" json:"userId"`
	WalletID      uint64  `gorm:"index;not null" json:"walletId"`
	ReviewerID    *int64  `json:"reviewerId,omitempty"`
	LedgerEntryID *uint64 `json:"ledgerEntryId,omitempty"`

	Amount    decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	Fee       decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"fee"`
	NetAmount decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"netAmount"`

	BankName          string `gorm:"size:100;not null" json:"bankName"`
	BankAccountNumber string `gorm:"size:50;not null" json:"bankAccountNumber"`
	BankAccountName   string `gorm:"size:100;not null" json:"bankAccountName"`
	BankBranch        string `gorm:"size:100" json:"bankBranch,omitempty"`

	Status   WithdrawalStatus `gorm:"size:20;not null;index:idx_withdrawal_queue,priority:1" json:"status"`
	Priority int              `gorm:"not null;default:5;index:idx_withdrawal_queue,priority:2" json:"priority"`

	PinVerified   bool `gorm:"not null;default:false" json:"pinVerified"`
	TwoFAVerified bool `gorm:"not null;default:false" json:"twoFAVerified"`

	Reason            string `gorm:"type:text" json:"reason,omitempty"`
	Notes             string `gorm:"type:text" json:"notes,omitempty"`
	RejectionReason   string `gorm:"type:text" json:"rejectionReason,omitempty"`
	AdminNotes        string `gorm:"type:text" json:"adminNotes,omitempty"`
	CancelReason      string `gorm:"type:text" json:"cancelReason,omitempty"`
	BankTransactionID string `gorm:"size:100" json:"bankTransactionId,omitempty"`
	RequestIP         string `gorm:"size:45" json:"-"`
	RequestUserAgent  string `gorm:"size:500" json:"-"`

	CreatedAt   time.Time  `gorm:"index:idx_withdrawal_queue,priority:3" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	ExpiredAt   *time.Time `json:"expiredAt,omitempty"`
	ExpiresAt   time.Time  `gorm:"index;not null" json:"expiresAt"`
}

func (r *WithdrawalRequest) IsPending() bool { return r.Status == WithdrawalPending }

func (r *WithdrawalRequest) IsExpired(now time.Time) bool {
	return r.Status == WithdrawalPending && now.After(r.ExpiresAt)
}

// Transition moves a pending request to target or reports the current
// status when it is not pending anymore.
func (r *WithdrawalRequest) Transition(target WithdrawalStatus) error {
	if r.Status != WithdrawalPending {
		return &TransitionError{Entity: "withdrawal " + r.RequestCode, Current: string(r.Status), Attempted: string(target)}
	}
	r.Status = target
	return nil
}
