package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/events"
	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/utils"
	"github.com/shopspring/decimal"
)

const sweepBatchSize = 100

// WithdrawalService runs the review workflow of cash withdrawals. Every
// balance change goes through the same locked unit of work the wallet
// service uses.
type WithdrawalService struct {
	base
	wallets *WalletService
	policy  WithdrawalPolicy
}

func NewWithdrawalService(wallets *WalletService, policy WithdrawalPolicy) *WithdrawalService {
	return &WithdrawalService{
		base:    wallets.base,
		wallets: wallets,
		policy:  policy,
	}
}

func (s *WithdrawalService) Policy() WithdrawalPolicy { return s.policy }

type CreateWithdrawalInput struct {
	UserID            int64           `json:"-"`
	Amount            decimal.Decimal `json:"amount"`
	BankName          string          `json:"bankName"`
	BankAccountNumber string          `json:"bankAccountNumber"`
	BankAccountName   string          `json:"bankAccountName"`
	BankBranch        string          `json:"bankBranch"`
	Pin               string          `json:"pin"`
	TwoFACode         string          `json:"twoFACode"`
	Reason            string          `json:"reason"`
	IP                string          `json:"-"`
	UserAgent         string          `json:"-"`
}

func (s *WithdrawalService) validateAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return models.NewValidationError("amount", "must be greater than zero")
	case !amount.Equal(amount.Round(2)):
		return models.NewValidationError("amount", "must have at most 2 decimal places")
	case amount.LessThan(s.policy.MinAmount):
		return models.NewValidationError("amount", "must be at least "+s.policy.MinAmount.String())
	case amount.GreaterThan(s.policy.MaxAmount):
		return models.NewValidationError("amount", "must be at most "+s.policy.MaxAmount.String())
	}
	return nil
}

// Create freezes the requested amount and queues the request for review.
func (s *WithdrawalService) Create(ctx context.Context, in CreateWithdrawalInput) (*models.WithdrawalRequest, error) {
	if err := s.validateAmount(in.Amount); err != nil {
		return nil, err
	}
	if err := validatePinFormat(in.Pin); err != nil {
		return nil, err
	}

	wallet, err := s.wallets.GetOrCreateWallet(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	bank := BankAccount{BankName: in.BankName, BankAccountNumber: in.BankAccountNumber, BankAccountName: in.BankAccountName}
	if bank.BankName == "" && bank.BankAccountNumber == "" && bank.BankAccountName == "" {
		bank = BankAccount{BankName: wallet.BankName, BankAccountNumber: wallet.BankAccountNumber, BankAccountName: wallet.BankAccountName}
	}
	if err := bank.validate(); err != nil {
		return nil, err
	}

	if err := checkPin(wallet, in.Pin); err != nil {
		return nil, err
	}
	twoFAVerified, err := checkTwoFA(wallet, in.TwoFACode)
	if err != nil {
		return nil, err
	}

	fee := CalculateFee(in.Amount, s.policy)
	net := in.Amount.Sub(fee)
	if !net.IsPositive() {
		return nil, models.NewValidationError("amount", "does not cover the withdrawal fee of "+fee.String())
	}

	var request *models.WithdrawalRequest
	err = s.mutate(ctx, in.UserID, func(u *unit) error {
		if err := u.wallet.EnsureActive("withdraw"); err != nil {
			return err
		}
		open, err := s.repo.CountHoldingWithdrawals(ctx, u.tx, in.UserID)
		if err != nil {
			return err
		}
		if open >= int64(s.policy.MaxPending) {
			return fmt.Errorf("%w: %d of %d open", models.ErrTooManyPending, open, s.policy.MaxPending)
		}
		if err := u.wallet.FreezeCash(in.Amount); err != nil {
			return err
		}
		u.markDirty()

		request = &models.WithdrawalRequest{
			RequestCode:       utils.NewRequestCode(),
			UserID:            in.UserID,
			WalletID:          u.wallet.ID,
			Amount:            in.Amount,
			Fee:               fee,
			NetAmount:         net,
			BankName:          strings.TrimSpace(bank.BankName),
			BankAccountNumber: strings.TrimSpace(bank.BankAccountNumber),
			BankAccountName:   strings.TrimSpace(bank.BankAccountName),
			BankBranch:        strings.TrimSpace(in.BankBranch),
			Status:            models.WithdrawalPending,
			Priority:          CalculatePriority(in.Amount, s.policy),
			PinVerified:       true,
			TwoFAVerified:     twoFAVerified,
			Reason:            in.Reason,
			RequestIP:         in.IP,
			RequestUserAgent:  in.UserAgent,
			CreatedAt:         u.now,
			UpdatedAt:         u.now,
			ExpiresAt:         u.now.Add(s.policy.TTL),
		}
		if err := s.repo.CreateWithdrawal(ctx, u.tx, request); err != nil {
			return err
		}
		u.emit(events.FromWithdrawal(events.WithdrawalCreated, request))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Withdrawal %s created for user %d: amount %s, fee %s, priority %d",
		request.RequestCode, in.UserID, request.Amount, request.Fee, request.Priority)
	s.notify(in.UserID, "Withdrawal requested",
		fmt.Sprintf("Request %s for %s is waiting for review. You will receive %s after a fee of %s.",
			request.RequestCode, request.Amount.StringFixed(0), request.NetAmount.StringFixed(0), request.Fee.StringFixed(0)),
		CategoryWithdrawal)
	s.notify(in.UserID, "New withdrawal request",
		fmt.Sprintf("%s: %s to %s %s (priority %d)",
			request.RequestCode, request.Amount.StringFixed(0), request.BankName,
			utils.MaskAccountNumber(request.BankAccountNumber), request.Priority),
		CategoryReview)
	return request, nil
}

// transition loads the request, then re-reads it under the owner's wallet
// lock and hands both to fn. The request is saved when fn reports a change.
func (s *WithdrawalService) transition(ctx context.Context, id uint64, fn func(u *unit, r *models.WithdrawalRequest) (bool, error)) (*models.WithdrawalRequest, error) {
	current, err := s.GetForReview(ctx, id)
	if err != nil {
		return nil, err
	}

	var request *models.WithdrawalRequest
	err = s.mutate(ctx, current.UserID, func(u *unit) error {
		r, err := s.repo.GetWithdrawalForUpdate(ctx, u.tx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return &models.NotFoundError{Entity: "withdrawal", Key: id}
		}
		if r.WalletID != u.wallet.ID {
			return fmt.Errorf("withdrawal %s does not belong to wallet %d", r.RequestCode, u.wallet.ID)
		}
		changed, err := fn(u, r)
		if err != nil {
			return err
		}
		request = r
		if !changed {
			return nil
		}
		r.UpdatedAt = u.now
		return s.repo.SaveWithdrawal(ctx, u.tx, r)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Approve pays the request out: the frozen amount leaves the wallet and a
// WITHDRAWAL_CASH debit is written in the same transaction.
func (s *WithdrawalService) Approve(ctx context.Context, id uint64, reviewerID int64, notes string) (*models.WithdrawalRequest, error) {
	request, err := s.transition(ctx, id, func(u *unit, r *models.WithdrawalRequest) (bool, error) {
		if err := r.Transition(models.WithdrawalCompleted); err != nil {
			return false, err
		}
		if err := u.wallet.EnsureActive("approve withdrawal"); err != nil {
			return false, err
		}
		if err := u.wallet.CompleteWithdrawal(r.Amount, u.now); err != nil {
			return false, err
		}

		entry := models.NewCashEntry(u.wallet, models.TxWithdrawalCash, models.Debit, r.Amount).
			WithReference(models.RefWithdrawal, r.RequestCode)
		entry.Fee = r.Fee
		entry.Description = fmt.Sprintf("Withdrawal to %s %s", r.BankName, utils.MaskAccountNumber(r.BankAccountNumber))
		entry.Notes = fmt.Sprintf("fee %s, net %s", r.Fee.StringFixed(2), r.NetAmount.StringFixed(2))
		if err := u.record(entry); err != nil {
			return false, err
		}

		now := u.now
		r.LedgerEntryID = &entry.ID
		r.ReviewerID = &reviewerID
		r.ApprovedAt = &now
		r.CompletedAt = &now
		r.AdminNotes = notes
		r.UpdatedAt = now
		u.emit(events.FromWithdrawal(events.WithdrawalCompleted, r))
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Withdrawal %s approved by %d", request.RequestCode, reviewerID)
	s.notify(request.UserID, "Withdrawal completed",
		fmt.Sprintf("Request %s was approved. %s is on its way to %s %s.",
			request.RequestCode, request.NetAmount.StringFixed(0), request.BankName, utils.MaskAccountNumber(request.BankAccountNumber)),
		CategoryWithdrawal)
	return request, nil
}

// Reject releases the hold. A reason is required so it can be shown to the
// user.
func (s *WithdrawalService) Reject(ctx context.Context, id uint64, reviewerID int64, reason string) (*models.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("reason", "is required")
	}
	request, err := s.transition(ctx, id, func(u *unit, r *models.WithdrawalRequest) (bool, error) {
		if err := release(u, r, models.WithdrawalRejected); err != nil {
			return false, err
		}
		now := u.now
		r.ReviewerID = &reviewerID
		r.RejectedAt = &now
		r.RejectionReason = reason
		u.emit(events.FromWithdrawal(events.WithdrawalRejected, r))
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Withdrawal %s rejected by %d: %s", request.RequestCode, reviewerID, reason)
	s.notify(request.UserID, "Withdrawal rejected",
		fmt.Sprintf("Request %s was rejected: %s. %s is available again.",
			request.RequestCode, reason, request.Amount.StringFixed(0)),
		CategoryWithdrawal)
	return request, nil
}

// Cancel is the owner withdrawing a request that has not been reviewed yet.
func (s *WithdrawalService) Cancel(ctx context.Context, id uint64, userID int64, reason string) (*models.WithdrawalRequest, error) {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return nil, err
	}
	request, err := s.transition(ctx, id, func(u *unit, r *models.WithdrawalRequest) (bool, error) {
		if err := release(u, r, models.WithdrawalCancelled); err != nil {
			return false, err
		}
		now := u.now
		r.CancelledAt = &now
		r.CancelReason = strings.TrimSpace(reason)
		u.emit(events.FromWithdrawal(events.WithdrawalCancelled, r))
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Withdrawal %s cancelled by its owner", request.RequestCode)
	s.notify(request.UserID, "Withdrawal cancelled",
		fmt.Sprintf("Request %s was cancelled. %s is available again.", request.RequestCode, request.Amount.StringFixed(0)),
		CategoryWithdrawal)
	return request, nil
}

// release moves a pending request to a final status and unfreezes its
// amount. Wallet status is not checked.
func release(u *unit, r *models.WithdrawalRequest, target models.WithdrawalStatus) error {
	if err := r.Transition(target); err != nil {
		return err
	}
	if err := u.wallet.UnfreezeCash(r.Amount); err != nil {
		return err
	}
	u.markDirty()
	r.UpdatedAt = u.now
	return nil
}

// expire reports false when the request was no longer pending or not yet
// due, which happens when a reviewer got to it first.
func (s *WithdrawalService) expire(ctx context.Context, id uint64, now time.Time) (bool, error) {
	expired := false
	request, err := s.transition(ctx, id, func(u *unit, r *models.WithdrawalRequest) (bool, error) {
		if !r.IsExpired(now) {
			return false, nil
		}
		if err := release(u, r, models.WithdrawalExpired); err != nil {
			return false, err
		}
		at := u.now
		r.ExpiredAt = &at
		u.emit(events.FromWithdrawal(events.WithdrawalExpired, r))
		expired = true
		return true, nil
	})
	if err != nil || !expired {
		return false, err
	}

	s.notify(request.UserID, "Withdrawal expired",
		fmt.Sprintf("Request %s was not reviewed in time and has expired. %s is available again.",
			request.RequestCode, request.Amount.StringFixed(0)),
		CategoryWithdrawal)
	return true, nil
}

// SweepExpired expires every pending request whose deadline is before now.
// A failure on one request does not stop the others.
func (s *WithdrawalService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = s.now()
	}
	seen := make(map[uint64]struct{})
	var errs []error
	count := 0

	for {
		ids, err := s.repo.ListExpiredPendingIDs(ctx, now, sweepBatchSize)
		if err != nil {
			return count, err
		}
		fresh := 0
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			fresh++

			expired, err := s.expire(ctx, id, now)
			if err != nil {
				s.logger.Errorf("Failed to expire withdrawal %d: %v", id, err)
				errs = append(errs, fmt.Errorf("withdrawal %d: %w", id, err))
				continue
			}
			if expired {
				count++
			}
		}
		if fresh == 0 || len(ids) < sweepBatchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
	}

	if count > 0 {
		s.logger.Infof("Expired %d withdrawal requests", count)
	}
	return count, errors.Join(errs...)
}

// AttachBankTransaction records the bank's reference for a payout made
// after approval. Sending the same reference again is a no-op.
func (s *WithdrawalService) AttachBankTransaction(ctx context.Context, id uint64, reviewerID int64, bankTxID string) (*models.WithdrawalRequest, error) {
	bankTxID = strings.TrimSpace(bankTxID)
	if bankTxID == "" {
		return nil, models.NewValidationError("bankTransactionId", "is required")
	}
	request, err := s.transition(ctx, id, func(u *unit, r *models.WithdrawalRequest) (bool, error) {
		if r.Status != models.WithdrawalCompleted {
			return false, &models.TransitionError{Entity: "withdrawal " + r.RequestCode, Current: string(r.Status), Attempted: "BANK_TRANSFERRED"}
		}
		switch r.BankTransactionID {
		case bankTxID:
			return false, nil
		case "":
			r.BankTransactionID = bankTxID
			return true, nil
		default:
			return false, models.NewValidationError("bankTransactionId", "a different bank transaction is already attached")
		}
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Bank transaction %s attached to withdrawal %s by %d", bankTxID, request.RequestCode, reviewerID)
	return request, nil
}

// Get returns one of the caller's own requests.
func (s *WithdrawalService) Get(ctx context.Context, id uint64, userID int64) (*models.WithdrawalRequest, error) {
	request, err := s.GetForReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.UserID != userID {
		return nil, models.ErrForbidden
	}
	return request, nil
}

func (s *WithdrawalService) GetForReview(ctx context.Context, id uint64) (*models.WithdrawalRequest, error) {
	request, err := s.repo.GetWithdrawalByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, &models.NotFoundError{Entity: "withdrawal", Key: id}
	}
	return request, nil
}

func (s *WithdrawalService) ListForUser(ctx context.Context, userID int64, page models.Page) (*models.Paged[models.WithdrawalRequest], error) {
	page = page.Normalize()
	items, total, err := s.repo.ListWithdrawalsByUser(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	return &models.Paged[models.WithdrawalRequest]{Items: items, Total: total, Page: page.Number, Size: page.Size}, nil
}

// ListForReview returns the queue for status, or every request when status
// is empty.
func (s *WithdrawalService) ListForReview(ctx context.Context, status models.WithdrawalStatus, page models.Page) (*models.Paged[models.WithdrawalRequest], error) {
	if status != "" && !status.Valid() {
		return nil, models.NewValidationError("status", "unknown withdrawal status")
	}
	page = page.Normalize()
	items, total, err := s.repo.ListWithdrawalsByStatus(ctx, status, page)
	if err != nil {
		return nil, err
	}
	return &models.Paged[models.WithdrawalRequest]{Items: items, Total: total, Page: page.Number, Size: page.Size}, nil
}
