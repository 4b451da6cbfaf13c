package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletStatus string

const (
	WalletActive WalletStatus = "ACTIVE"
	WalletFrozen WalletStatus = "FROZEN"
	WalletClosed WalletStatus = "CLOSED"
)

func (s WalletStatus) Valid() bool {
	switch s {
	case WalletActive, WalletFrozen, WalletClosed:
		return true
	}
	return false
}

type Wallet struct {
	ID     uint64 `gorm:"primaryKey" json:"id"`
	UserID int64  `gorm:"uniqueIndex;not null" json:"userId"`

	CashBalance       decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"cashBalance"`
	FrozenCashBalance decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"frozenCashBalance"`
	CoinBalance       int64           `gorm:"not null;default:0" json:"coinBalance"`

	TotalDeposited   decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"totalDeposited"`
	TotalWithdrawn   decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"totalWithdrawn"`
	TotalCoinsEarned int64           `gorm:"not null;default:0" json:"totalCoinsEarned"`
	TotalCoinsSpent  int64           `gorm:"not null;default:0" json:"totalCoinsSpent"`

	TransactionPin string `gorm:"size:255" json:"-"`
	Require2FA     bool   `gorm:"not null;default:false" json:"require2FA"`
	TwoFASecret    string `gorm:"size:64" json:"-"`

	BankName          string `gorm:"size:100" json:"bankName,omitempty"`
	BankAccountNumber string `gorm:"size:50" json:"bankAccountNumber,omitempty"`
	BankAccountName   string `gorm:"size:100" json:"bankAccountName,omitempty"`

	Status            WalletStatus `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	LastTransactionAt *time.Time   `json:"lastTransactionAt,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

func NewWallet(userID int64) *Wallet {
	return &Wallet{
		UserID:            userID,
		CashBalance:       decimal.Zero,
		FrozenCashBalance: decimal.Zero,
		TotalDeposited:    decimal.Zero,
		TotalWithdrawn:    decimal.Zero,
		Status:            WalletActive,
	}
}

func (w *Wallet) AvailableCash() decimal.Decimal {
	return w.CashBalance.Sub(w.FrozenCashBalance)
}

func (w *Wallet) HasAvailableCash(amount decimal.Decimal) bool {
	return w.AvailableCash().GreaterThanOrEqual(amount)
}

func (w *Wallet) HasPin() bool { return w.TransactionPin != "" }

func (w *Wallet) HasBankAccount() bool {
	return w.BankName != "" && w.BankAccountNumber != "" && w.BankAccountName != ""
}

// EnsureActive reports whether balances may be mutated.
func (w *Wallet) EnsureActive(attempted string) error {
	if w.Status != WalletActive {
		return &TransitionError{Entity: "wallet", Current: string(w.Status), Attempted: attempted}
	}
	return nil
}

func (w *Wallet) DepositCash(amount decimal.Decimal, at time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	w.CashBalance = w.CashBalance.Add(amount)
	w.TotalDeposited = w.TotalDeposited.Add(amount)
	w.touch(at)
	return nil
}

// CreditCash adds cash that is not a deposit (refunds, payouts).
func (w *Wallet) CreditCash(amount decimal.Decimal, at time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	w.CashBalance = w.CashBalance.Add(amount)
	w.touch(at)
	return nil
}

func (w *Wallet) DeductCash(amount decimal.Decimal, at time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if !w.HasAvailableCash(amount) {
		return w.cashShortfall(amount)
	}
	w.CashBalance = w.CashBalance.Sub(amount)
	w.touch(at)
	return nil
}

func (w *Wallet) AddCoins(amount int64, at time.Time) error {
	if amount <= 0 {
		return NewValidationError("amount", "must be greater than zero")
	}
	w.CoinBalance += amount
	w.touch(at)
	return nil
}

// EarnCoins credits coins and counts them toward lifetime earnings.
func (w *Wallet) EarnCoins(amount int64, at time.Time) error {
	if err := w.AddCoins(amount, at); err != nil {
		return err
	}
	w.TotalCoinsEarned += amount
	return nil
}

func (w *Wallet) DeductCoins(amount int64, at time.Time) error {
	if amount <= 0 {
		return NewValidationError("amount", "must be greater than zero")
	}
	if w.CoinBalance < amount {
		return &BalanceError{
			Currency:  CurrencyCoin,
			Available: decimal.NewFromInt(w.CoinBalance).String(),
			Required:  decimal.NewFromInt(amount).String(),
		}
	}
	w.CoinBalance -= amount
	w.TotalCoinsSpent += amount
	w.touch(at)
	return nil
}

func (w *Wallet) FreezeCash(amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if !w.HasAvailableCash(amount) {
		return w.cashShortfall(amount)
	}
	w.FrozenCashBalance = w.FrozenCashBalance.Add(amount)
	return nil
}

func (w *Wallet) UnfreezeCash(amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if w.FrozenCashBalance.LessThan(amount) {
		return &BalanceError{Currency: CurrencyFrozenCash, Available: w.FrozenCashBalance.String(), Required: amount.String()}
	}
	w.FrozenCashBalance = w.FrozenCashBalance.Sub(amount)
	return nil
}

// CompleteWithdrawal consumes a previous freeze: both the cash and the
// frozen balance drop by amount.
func (w *Wallet) CompleteWithdrawal(amount decimal.Decimal, at time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if w.FrozenCashBalance.LessThan(amount) {
		return &BalanceError{Currency: CurrencyFrozenCash, Available: w.FrozenCashBalance.String(), Required: amount.String()}
	}
	if w.CashBalance.LessThan(amount) {
		return &BalanceError{Currency: CurrencyCash, Available: w.CashBalance.String(), Required: amount.String()}
	}
	w.CashBalance = w.CashBalance.Sub(amount)
	w.FrozenCashBalance = w.FrozenCashBalance.Sub(amount)
	w.TotalWithdrawn = w.TotalWithdrawn.Add(amount)
	w.touch(at)
	return nil
}

func (w *Wallet) cashShortfall(amount decimal.Decimal) error {
	return &BalanceError{Currency: CurrencyCash, Available: w.AvailableCash().String(), Required: amount.String()}
}

func (w *Wallet) touch(at time.Time) {
	t := at
	w.LastTransactionAt = &t
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("amount", "must be greater than zero")
	}
	return nil
}
