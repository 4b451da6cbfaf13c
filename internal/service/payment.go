package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/Fi44er/wallet_ledger/internal/gateway"
	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/shopspring/decimal"
)

// PaymentService opens wallet top-up checkouts and routes the gateway's
// success notifications to the right credit.
type PaymentService struct {
	base
	wallets  *WalletService
	coins    *CoinService
	gateway  gateway.Gateway
	currency string
}

func NewPaymentService(wallets *WalletService, coins *CoinService, gw gateway.Gateway, currency string) *PaymentService {
	return &PaymentService{
		base:     wallets.base,
		wallets:  wallets,
		coins:    coins,
		gateway:  gw,
		currency: currency,
	}
}

func (s *PaymentService) CreateTopUp(ctx context.Context, userID int64, amount decimal.Decimal, successURL, cancelURL string) (*gateway.Checkout, error) {
	if err := validateCash(amount); err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}
	if _, err := s.wallets.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}

	checkout, err := s.gateway.CreateCheckout(ctx, gateway.CheckoutRequest{
		Amount:      amount,
		Currency:    s.currency,
		Description: "Wallet top-up",
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		Metadata: map[string]string{
			MetaPurpose: PurposeWalletTopUp,
			MetaUserID:  strconv.FormatInt(userID, 10),
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Top-up checkout %s opened for user %d, amount %s", checkout.Reference, userID, amount)
	return checkout, nil
}

// HandleNotification applies a gateway success callback. It is called at
// least once per payment; every path below is idempotent on the reference.
// A nil result with a nil error means the notification was not a success
// and was ignored.
func (s *PaymentService) HandleNotification(ctx context.Context, n gateway.Notification) (*DepositResult, error) {
	if strings.TrimSpace(n.Reference) == "" {
		return nil, models.NewValidationError("reference", "is required")
	}
	if !n.Succeeded() {
		s.logger.Infof("Ignoring payment %s with status %s", n.Reference, n.Status)
		return nil, nil
	}

	switch purpose := n.Metadata[MetaPurpose]; purpose {
	case PurposeWalletTopUp:
		userID, err := metaInt(n.Metadata, MetaUserID)
		if err != nil {
			return nil, err
		}
		return s.wallets.DepositCash(ctx, userID, n.Amount, n.Reference, "Wallet top-up via payment gateway")
	case PurposeCoinPurchase:
		return s.coins.HandleCoinPayment(ctx, n)
	default:
		return nil, models.NewValidationError(MetaPurpose, "unknown payment purpose "+strconv.Quote(purpose))
	}
}
