package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/internal/repository"
	"github.com/shopspring/decimal"
)

// WalletService is the only code path that changes wallet balances.
type WalletService struct {
	base
	pinCost    int
	totpIssuer string
}

type WalletPolicy struct {
	PinHashCost int
	TOTPIssuer  string
}

func NewWalletService(deps Deps, policy WalletPolicy) *WalletService {
	if policy.TOTPIssuer == "" {
		policy.TOTPIssuer = "Wallet"
	}
	return &WalletService{
		base:       newBase(deps),
		pinCost:    policy.PinHashCost,
		totpIssuer: policy.TOTPIssuer,
	}
}

// DepositResult is returned by idempotent credits. Duplicate is set when
// the external reference had already been applied; Entry is then the
// original entry and nothing changed.
type DepositResult struct {
	Entry     *models.LedgerEntry `json:"entry"`
	Duplicate bool                `json:"duplicate"`
}

type CoinOp struct {
	UserID        int64
	Amount        int64
	Type          models.TransactionType
	Description   string
	ReferenceType string
	ReferenceID   string
}

type CashOp struct {
	UserID        int64
	Amount        decimal.Decimal
	Type          models.TransactionType
	Description   string
	ReferenceType string
	ReferenceID   string
}

type BankAccount struct {
	BankName          string `json:"bankName"`
	BankAccountNumber string `json:"bankAccountNumber"`
	BankAccountName   string `json:"bankAccountName"`
}

// validateCash accepts positive amounts with at most two decimal places,
// the scale of every money column.
func validateCash(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return models.NewValidationError("amount", "must be greater than zero")
	case !amount.Equal(amount.Round(2)):
		return models.NewValidationError("amount", "must have at most 2 decimal places")
	}
	return nil
}

func (a BankAccount) validate() error {
	switch {
	case strings.TrimSpace(a.BankName) == "":
		return models.NewValidationError("bankName", "is required")
	case strings.TrimSpace(a.BankAccountNumber) == "":
		return models.NewValidationError("bankAccountNumber", "is required")
	case strings.TrimSpace(a.BankAccountName) == "":
		return models.NewValidationError("bankAccountName", "is required")
	}
	return nil
}

func (s *WalletService) GetOrCreateWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	wallet, err := s.repo.GetWalletByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet, created, err := s.repo.CreateWalletIfMissing(ctx, userID)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Infof("Created wallet %d for user %d", wallet.ID, userID)
	}
	return wallet, nil
}

func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	wallet, err := s.repo.GetWalletByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, &models.NotFoundError{Entity: "wallet of user", Key: userID}
	}
	return wallet, nil
}

type Balance struct {
	UserID            int64               `json:"userId"`
	CashBalance       decimal.Decimal     `json:"cashBalance"`
	FrozenCashBalance decimal.Decimal     `json:"frozenCashBalance"`
	AvailableCash     decimal.Decimal     `json:"availableCash"`
	CoinBalance       int64               `json:"coinBalance"`
	Status            models.WalletStatus `json:"status"`
	HasPin            bool                `json:"hasPin"`
	Require2FA        bool                `json:"require2FA"`
	HasBankAccount    bool                `json:"hasBankAccount"`
}

func balanceOf(w *models.Wallet) *Balance {
	return &Balance{
		UserID:            w.UserID,
		CashBalance:       w.CashBalance,
		FrozenCashBalance: w.FrozenCashBalance,
		AvailableCash:     w.AvailableCash(),
		CoinBalance:       w.CoinBalance,
		Status:            w.Status,
		HasPin:            w.HasPin(),
		Require2FA:        w.Require2FA,
		HasBankAccount:    w.HasBankAccount(),
	}
}

func (s *WalletService) Balance(ctx context.Context, userID int64) (*Balance, error) {
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return balanceOf(wallet), nil
}

// DepositCash credits money received through the payment gateway. It is
// safe to call again with the same externalRef.
func (s *WalletService) DepositCash(ctx context.Context, userID int64, amount decimal.Decimal, externalRef, description string) (*DepositResult, error) {
	if err := validateCash(amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(externalRef) == "" {
		return nil, models.NewValidationError("externalReference", "is required")
	}
	if _, err := s.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}
	if description == "" {
		description = "Wallet top-up"
	}

	key := models.PaymentKey(models.CurrencyCash, externalRef)
	result := &DepositResult{}
	err := s.mutate(ctx, userID, func(u *unit) error {
		existing, err := s.repo.FindCompletedEntryByKey(ctx, u.tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Entry, result.Duplicate = existing, true
			return nil
		}

		if err := u.wallet.EnsureActive("deposit"); err != nil {
			return err
		}
		if err := u.wallet.DepositCash(amount, u.now); err != nil {
			return err
		}
		entry := models.NewCashEntry(u.wallet, models.TxDepositCash, models.Credit, amount).
			WithReference(models.RefPayment, externalRef)
		entry.Description = description
		entry.IdempotencyKey = &key
		result.Entry = entry
		return u.record(entry)
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		s.logger.Warnf("Duplicate deposit %s for user %d ignored", externalRef, userID)
		return result, nil
	}
	s.logger.Infof("Deposited %s to user %d (ref %s)", amount, userID, externalRef)
	s.notify(userID, "Deposit received",
		fmt.Sprintf("%s has been added to your wallet.", amount.StringFixed(0)), CategoryWallet)
	return result, nil
}

// CreditCoinsFromPayment credits coins paid for outside the wallet. Like
// DepositCash it is keyed on the gateway reference.
func (s *WalletService) CreditCoinsFromPayment(ctx context.Context, userID, amount int64, txType models.TransactionType, description, gatewayRef string) (*DepositResult, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("amount", "must be greater than zero")
	}
	if strings.TrimSpace(gatewayRef) == "" {
		return nil, models.NewValidationError("externalReference", "is required")
	}
	if _, err := s.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}

	key := models.PaymentKey(models.CurrencyCoin, gatewayRef)
	result := &DepositResult{}
	err := s.mutate(ctx, userID, func(u *unit) error {
		existing, err := s.repo.FindCompletedEntryByKey(ctx, u.tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Entry, result.Duplicate = existing, true
			return nil
		}

		if err := u.wallet.EnsureActive("credit coins"); err != nil {
			return err
		}
		if err := u.wallet.AddCoins(amount, u.now); err != nil {
			return err
		}
		entry := models.NewCoinEntry(u.wallet, txType, models.Credit, amount).
			WithReference(models.RefPayment, gatewayRef)
		entry.Description = description
		entry.IdempotencyKey = &key
		result.Entry = entry
		return u.record(entry)
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		s.logger.Warnf("Duplicate coin payment %s for user %d ignored", gatewayRef, userID)
		return result, nil
	}
	s.logger.Infof("Credited %d coins to user %d (ref %s)", amount, userID, gatewayRef)
	s.notify(userID, "Coins received", fmt.Sprintf("%d coins have been added to your wallet.", amount), CategoryCoins)
	return result, nil
}

// AddCoins credits coins. Earning types also count toward lifetime earnings.
func (s *WalletService) AddCoins(ctx context.Context, op CoinOp) (*models.LedgerEntry, error) {
	if op.Amount <= 0 {
		return nil, models.NewValidationError("amount", "must be greater than zero")
	}
	if op.Type == "" {
		op.Type = models.TxEarnCoins
	}
	if _, err := s.GetOrCreateWallet(ctx, op.UserID); err != nil {
		return nil, err
	}

	var entry *models.LedgerEntry
	err := s.mutate(ctx, op.UserID, func(u *unit) error {
		if err := u.wallet.EnsureActive("add coins"); err != nil {
			return err
		}
		credit := u.wallet.AddCoins
		if op.Type.IsEarning() {
			credit = u.wallet.EarnCoins
		}
		if err := credit(op.Amount, u.now); err != nil {
			return err
		}
		entry = models.NewCoinEntry(u.wallet, op.Type, models.Credit, op.Amount).
			WithReference(op.ReferenceType, op.ReferenceID)
		entry.Description = op.Description
		return u.record(entry)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Added %d coins (%s) to user %d", op.Amount, op.Type, op.UserID)
	return entry, nil
}

func (s *WalletService) DeductCoins(ctx context.Context, op CoinOp) (*models.LedgerEntry, error) {
	if op.Amount <= 0 {
		return nil, models.NewValidationError("amount", "must be greater than zero")
	}
	if op.Type == "" {
		op.Type = models.TxSpendCoins
	}

	var entry *models.LedgerEntry
	err := s.mutate(ctx, op.UserID, func(u *unit) error {
		if err := u.wallet.EnsureActive("deduct coins"); err != nil {
			return err
		}
		if err := u.wallet.DeductCoins(op.Amount, u.now); err != nil {
			return err
		}
		entry = models.NewCoinEntry(u.wallet, op.Type, models.Debit, op.Amount).
			WithReference(op.ReferenceType, op.ReferenceID)
		entry.Description = op.Description
		return u.record(entry)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Deducted %d coins (%s) from user %d", op.Amount, op.Type, op.UserID)
	return entry, nil
}

// DeductCash charges available cash for an in-app purchase.
func (s *WalletService) DeductCash(ctx context.Context, op CashOp) (*models.LedgerEntry, error) {
	if err := validateCash(op.Amount); err != nil {
		return nil, err
	}
	if op.Type == "" {
		return nil, models.NewValidationError("type", "is required")
	}

	var entry *models.LedgerEntry
	err := s.mutate(ctx, op.UserID, func(u *unit) error {
		if err := u.wallet.EnsureActive("deduct cash"); err != nil {
			return err
		}
		if err := u.wallet.DeductCash(op.Amount, u.now); err != nil {
			return err
		}
		entry = models.NewCashEntry(u.wallet, op.Type, models.Debit, op.Amount).
			WithReference(op.ReferenceType, op.ReferenceID)
		entry.Description = op.Description
		return u.record(entry)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Deducted %s cash (%s) from user %d", op.Amount, op.Type, op.UserID)
	return entry, nil
}

// CreditCash adds cash that did not come from a deposit: refunds and
// payouts.
func (s *WalletService) CreditCash(ctx context.Context, op CashOp) (*models.LedgerEntry, error) {
	if err := validateCash(op.Amount); err != nil {
		return nil, err
	}
	if op.Type == "" {
		return nil, models.NewValidationError("type", "is required")
	}
	if _, err := s.GetOrCreateWallet(ctx, op.UserID); err != nil {
		return nil, err
	}

	var entry *models.LedgerEntry
	err := s.mutate(ctx, op.UserID, func(u *unit) error {
		if err := u.wallet.EnsureActive("credit cash"); err != nil {
			return err
		}
		if err := u.wallet.CreditCash(op.Amount, u.now); err != nil {
			return err
		}
		entry = models.NewCashEntry(u.wallet, op.Type, models.Credit, op.Amount).
			WithReference(op.ReferenceType, op.ReferenceID)
		entry.Description = op.Description
		return u.record(entry)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Credited %s cash (%s) to user %d", op.Amount, op.Type, op.UserID)
	return entry, nil
}

// FreezeCash reserves available cash without moving it.
func (s *WalletService) FreezeCash(ctx context.Context, userID int64, amount decimal.Decimal) (*Balance, error) {
	if err := validateCash(amount); err != nil {
		return nil, err
	}
	var out *Balance
	err := s.mutate(ctx, userID, func(u *unit) error {
		if err := u.wallet.EnsureActive("freeze cash"); err != nil {
			return err
		}
		if err := u.wallet.FreezeCash(amount); err != nil {
			return err
		}
		u.markDirty()
		out = balanceOf(u.wallet)
		return nil
	})
	return out, err
}

// UnfreezeCash returns reserved cash to the available balance. It is a
// compensating operation and is allowed on wallets that are not active.
// Cash backing a pending withdrawal can only be released by that request.
func (s *WalletService) UnfreezeCash(ctx context.Context, userID int64, amount decimal.Decimal) (*Balance, error) {
	if err := validateCash(amount); err != nil {
		return nil, err
	}
	var out *Balance
	err := s.mutate(ctx, userID, func(u *unit) error {
		holding, err := s.repo.SumHoldingWithdrawals(ctx, u.tx, userID)
		if err != nil {
			return err
		}
		releasable := u.wallet.FrozenCashBalance.Sub(holding)
		if releasable.LessThan(amount) {
			return &models.BalanceError{
				Currency:  models.CurrencyFrozenCash,
				Available: decimal.Max(releasable, decimal.Zero).String(),
				Required:  amount.String(),
			}
		}
		if err := u.wallet.UnfreezeCash(amount); err != nil {
			return err
		}
		u.markDirty()
		out = balanceOf(u.wallet)
		return nil
	})
	return out, err
}

type CoursePurchase struct {
	BuyerID     int64
	AuthorID    int64
	CourseID    string
	CourseTitle string
	Price       decimal.Decimal
	AuthorShare decimal.Decimal
}

type CourseSettlement struct {
	Charge *models.LedgerEntry `json:"charge"`
	Payout *models.LedgerEntry `json:"payout,omitempty"`
}

// SettleCoursePurchase charges the buyer and then credits the author's
// share. The two wallets are locked one after the other, never together.
func (s *WalletService) SettleCoursePurchase(ctx context.Context, p CoursePurchase) (*CourseSettlement, error) {
	if p.BuyerID == p.AuthorID {
		return nil, models.NewValidationError("authorId", "buyer and author must differ")
	}
	if p.AuthorShare.IsNegative() || p.AuthorShare.GreaterThan(decimal.NewFromInt(1)) {
		return nil, models.NewValidationError("authorShare", "must be between 0 and 1")
	}
	ref := models.CourseReference(p.CourseID)

	charge, err := s.DeductCash(ctx, CashOp{
		UserID:        p.BuyerID,
		Amount:        p.Price,
		Type:          models.TxCoursePurchase,
		Description:   "Course purchase: " + p.CourseTitle,
		ReferenceType: ref,
		ReferenceID:   p.CourseID,
	})
	if err != nil {
		return nil, err
	}
	out := &CourseSettlement{Charge: charge}

	share := p.Price.Mul(p.AuthorShare).RoundFloor(2)
	if !share.IsPositive() {
		return out, nil
	}
	payout, err := s.CreditCash(ctx, CashOp{
		UserID:        p.AuthorID,
		Amount:        share,
		Type:          models.TxMentorPayout,
		Description:   "Course sale: " + p.CourseTitle,
		ReferenceType: ref,
		ReferenceID:   p.CourseID,
	})
	if err != nil {
		s.logger.Errorf("Buyer %d charged for course %s but payout of %s to author %d failed: %v",
			p.BuyerID, p.CourseID, share, p.AuthorID, err)
		return out, fmt.Errorf("author payout failed after buyer was charged: %w", err)
	}
	out.Payout = payout
	return out, nil
}

func (s *WalletService) UpdateBankAccount(ctx context.Context, userID int64, account BankAccount) (*models.Wallet, error) {
	if err := account.validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}
	var out *models.Wallet
	err := s.mutate(ctx, userID, func(u *unit) error {
		u.wallet.BankName = strings.TrimSpace(account.BankName)
		u.wallet.BankAccountNumber = strings.TrimSpace(account.BankAccountNumber)
		u.wallet.BankAccountName = strings.TrimSpace(account.BankAccountName)
		u.markDirty()
		out = u.wallet
		return nil
	})
	return out, err
}

// SetStatus is a reviewer action. A closed wallet stays closed.
func (s *WalletService) SetStatus(ctx context.Context, userID int64, status models.WalletStatus) (*models.Wallet, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("status", "unknown wallet status")
	}
	var out *models.Wallet
	err := s.mutate(ctx, userID, func(u *unit) error {
		w := u.wallet
		if w.Status == models.WalletClosed && status != models.WalletClosed {
			return &models.TransitionError{Entity: "wallet", Current: string(w.Status), Attempted: string(status)}
		}
		if status == models.WalletClosed && w.FrozenCashBalance.IsPositive() {
			return &models.TransitionError{Entity: "wallet with open withdrawals", Current: string(w.Status), Attempted: string(status)}
		}
		w.Status = status
		u.markDirty()
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Wallet of user %d is now %s", userID, status)
	return out, nil
}

func (s *WalletService) History(ctx context.Context, userID int64, filter repository.EntryFilter, page models.Page) (*models.Paged[models.LedgerEntry], error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()
	items, total, err := s.repo.ListLedgerEntries(ctx, wallet.ID, filter, page)
	if err != nil {
		return nil, err
	}
	return &models.Paged[models.LedgerEntry]{Items: items, Total: total, Page: page.Number, Size: page.Size}, nil
}

// GetEntry returns one of the caller's own ledger entries.
func (s *WalletService) GetEntry(ctx context.Context, userID int64, entryID uint64) (*models.LedgerEntry, error) {
	entry, err := s.repo.GetLedgerEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, &models.NotFoundError{Entity: "transaction", Key: entryID}
	}
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entry.WalletID != wallet.ID {
		return nil, models.ErrForbidden
	}
	return entry, nil
}

type WalletStatistics struct {
	Balance
	TotalDeposited      decimal.Decimal                   `json:"totalDeposited"`
	TotalWithdrawn      decimal.Decimal                   `json:"totalWithdrawn"`
	TotalCoinsEarned    int64                             `json:"totalCoinsEarned"`
	TotalCoinsSpent     int64                             `json:"totalCoinsSpent"`
	PendingWithdrawals  decimal.Decimal                   `json:"pendingWithdrawals"`
	WithdrawalsByStatus map[models.WithdrawalStatus]int64 `json:"withdrawalsByStatus"`
	EntriesByType       map[models.TransactionType]int64  `json:"entriesByType"`
	LastTransactionAt   *time.Time                        `json:"lastTransactionAt,omitempty"`
}

func (s *WalletService) Statistics(ctx context.Context, userID int64) (*WalletStatistics, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	byType, err := s.repo.CountEntriesByType(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.repo.GetWithdrawalTotals(ctx, &userID)
	if err != nil {
		return nil, err
	}
	return &WalletStatistics{
		Balance:             *balanceOf(wallet),
		TotalDeposited:      wallet.TotalDeposited,
		TotalWithdrawn:      wallet.TotalWithdrawn,
		TotalCoinsEarned:    wallet.TotalCoinsEarned,
		TotalCoinsSpent:     wallet.TotalCoinsSpent,
		PendingWithdrawals:  withdrawals.PendingAmount,
		WithdrawalsByStatus: withdrawals.ByStatus,
		EntriesByType:       byType,
		LastTransactionAt:   wallet.LastTransactionAt,
	}, nil
}

type GlobalStatistics struct {
	Wallets             int64                             `json:"wallets"`
	ActiveWallets       int64                             `json:"activeWallets"`
	TotalCash           decimal.Decimal                   `json:"totalCash"`
	TotalFrozenCash     decimal.Decimal                   `json:"totalFrozenCash"`
	TotalCoins          int64                             `json:"totalCoins"`
	TotalDeposited      decimal.Decimal                   `json:"totalDeposited"`
	TotalWithdrawn      decimal.Decimal                   `json:"totalWithdrawn"`
	PendingWithdrawals  decimal.Decimal                   `json:"pendingWithdrawals"`
	WithdrawalsPaidOut  decimal.Decimal                   `json:"withdrawalsPaidOut"`
	WithdrawalFees      decimal.Decimal                   `json:"withdrawalFees"`
	WithdrawalsByStatus map[models.WithdrawalStatus]int64 `json:"withdrawalsByStatus"`
}

func (s *WalletService) GlobalStatistics(ctx context.Context) (*GlobalStatistics, error) {
	wallets, err := s.repo.GetWalletTotals(ctx)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.repo.GetWithdrawalTotals(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &GlobalStatistics{
		Wallets:             wallets.Wallets,
		ActiveWallets:       wallets.ActiveWallets,
		TotalCash:           wallets.Cash,
		TotalFrozenCash:     wallets.FrozenCash,
		TotalCoins:          wallets.Coins,
		TotalDeposited:      wallets.Deposited,
		TotalWithdrawn:      wallets.Withdrawn,
		PendingWithdrawals:  withdrawals.PendingAmount,
		WithdrawalsPaidOut:  withdrawals.PaidOut,
		WithdrawalFees:      withdrawals.FeesCollected,
		WithdrawalsByStatus: withdrawals.ByStatus,
	}, nil
}

// Reconciliation compares the cached wallet balances with what the ledger
// and the open withdrawal requests say they should be.
type Reconciliation struct {
	UserID             int64           `json:"userId"`
	CashBalance        decimal.Decimal `json:"cashBalance"`
	LedgerCash         decimal.Decimal `json:"ledgerCash"`
	CoinBalance        int64           `json:"coinBalance"`
	LedgerCoins        int64           `json:"ledgerCoins"`
	FrozenCashBalance  decimal.Decimal `json:"frozenCashBalance"`
	HoldingWithdrawals decimal.Decimal `json:"holdingWithdrawals"`
	Entries            int             `json:"entries"`
}

// Balanced reports whether the cached balances match the ledger. Frozen
// cash may exceed the open withdrawals by standalone holds, never fall
// below them.
func (r *Reconciliation) Balanced() bool {
	return r.CashBalance.Equal(r.LedgerCash) &&
		r.CoinBalance == r.LedgerCoins &&
		!r.FrozenCashBalance.LessThan(r.HoldingWithdrawals)
}

var ErrUnbalanced = errors.New("wallet does not reconcile with its ledger")

func (s *WalletService) Reconcile(ctx context.Context, userID int64) (*Reconciliation, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.CompletedEntries(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	holding, err := s.repo.SumHoldingWithdrawals(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	rec := &Reconciliation{
		UserID:             userID,
		CashBalance:        wallet.CashBalance,
		LedgerCash:         decimal.Zero,
		CoinBalance:        wallet.CoinBalance,
		FrozenCashBalance:  wallet.FrozenCashBalance,
		HoldingWithdrawals: holding,
		Entries:            len(entries),
	}
	for i := range entries {
		rec.LedgerCash = rec.LedgerCash.Add(entries[i].SignedCash())
		rec.LedgerCoins += entries[i].SignedCoins()
	}
	if !rec.Balanced() {
		s.logger.Errorf("Wallet of user %d does not reconcile: cash %s vs ledger %s, coins %d vs ledger %d, frozen %s vs open requests %s",
			userID, rec.CashBalance, rec.LedgerCash, rec.CoinBalance, rec.LedgerCoins, rec.FrozenCashBalance, rec.HoldingWithdrawals)
		return rec, ErrUnbalanced
	}
	return rec, nil
}
