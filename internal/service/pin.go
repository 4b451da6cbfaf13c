package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/utils"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const pinLength = 6

func validatePinFormat(pin string) error {
	if !utils.IsDigits(pin, pinLength) {
		return models.NewValidationError("pin", "must be exactly 6 digits")
	}
	return nil
}

// SetPIN stores a one-way hash of a 6 digit transaction PIN.
func (s *WalletService) SetPIN(ctx context.Context, userID int64, pin string) error {
	if err := validatePinFormat(pin); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.pinCost)
	if err != nil {
		return err
	}
	if _, err := s.GetOrCreateWallet(ctx, userID); err != nil {
		return err
	}

	err = s.mutate(ctx, userID, func(u *unit) error {
		u.wallet.TransactionPin = string(hash)
		u.markDirty()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Infof("Transaction PIN updated for user %d", userID)
	s.notify(userID, "Transaction PIN changed", "Your wallet transaction PIN was updated.", CategoryWallet)
	return nil
}

func (s *WalletService) VerifyPIN(ctx context.Context, userID int64, pin string) error {
	if err := validatePinFormat(pin); err != nil {
		return err
	}
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return err
	}
	return checkPin(wallet, pin)
}

func checkPin(w *models.Wallet, pin string) error {
	if !w.HasPin() {
		return models.ErrPinNotSet
	}
	err := bcrypt.CompareHashAndPassword([]byte(w.TransactionPin), []byte(pin))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return models.ErrPinMismatch
	}
	return err
}

// checkTwoFA passes when the wallet does not require a second factor.
func checkTwoFA(w *models.Wallet, code string) (bool, error) {
	if !w.Require2FA {
		return false, nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return false, models.ErrTwoFARequired
	}
	if !totp.Validate(code, w.TwoFASecret) {
		return false, models.ErrTwoFAMismatch
	}
	return true, nil
}

type TwoFASetup struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// SetupTwoFA generates a new TOTP secret. It is not enforced until
// EnableTwoFA confirms a code generated from it.
func (s *WalletService) SetupTwoFA(ctx context.Context, userID int64, accountName string) (*TwoFASetup, error) {
	if strings.TrimSpace(accountName) == "" {
		return nil, models.NewValidationError("accountName", "is required")
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.totpIssuer, AccountName: accountName})
	if err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}

	err = s.mutate(ctx, userID, func(u *unit) error {
		if u.wallet.Require2FA {
			return &models.TransitionError{Entity: "two-factor", Current: "ENABLED", Attempted: "SETUP"}
		}
		u.wallet.TwoFASecret = key.Secret()
		u.markDirty()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TwoFASetup{Secret: key.Secret(), URL: key.URL()}, nil
}

func (s *WalletService) EnableTwoFA(ctx context.Context, userID int64, code string) error {
	err := s.mutate(ctx, userID, func(u *unit) error {
		w := u.wallet
		if w.Require2FA {
			return nil
		}
		if w.TwoFASecret == "" {
			return &models.TransitionError{Entity: "two-factor", Current: "NOT_SET_UP", Attempted: "ENABLED"}
		}
		if !totp.Validate(strings.TrimSpace(code), w.TwoFASecret) {
			return models.ErrTwoFAMismatch
		}
		w.Require2FA = true
		u.markDirty()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Infof("Two-factor enabled for user %d", userID)
	s.notify(userID, "Two-factor enabled", "Withdrawals now require an authenticator code.", CategoryWallet)
	return nil
}

func (s *WalletService) DisableTwoFA(ctx context.Context, userID int64, code string) error {
	err := s.mutate(ctx, userID, func(u *unit) error {
		if _, err := checkTwoFA(u.wallet, code); err != nil {
			return err
		}
		u.wallet.Require2FA = false
		u.wallet.TwoFASecret = ""
		u.markDirty()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Infof("Two-factor disabled for user %d", userID)
	return nil
}
