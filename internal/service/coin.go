package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Fi44er/wallet_ledger/internal/gateway"
	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/shopspring/decimal"
)

var ErrGatewayUnavailable = errors.New("payment gateway is not configured")

// Checkout metadata keys echoed back by the gateway on success.
const (
	MetaPurpose    = "purpose"
	MetaUserID     = "userId"
	MetaPackageID  = "packageId"
	MetaCoinAmount = "coinAmount"
	MetaTotalCoins = "totalCoins"
	MetaBonusCoins = "bonusCoins"

	PurposeWalletTopUp  = "WALLET_TOPUP"
	PurposeCoinPurchase = "COIN_PURCHASE"
)

type CoinPolicy struct {
	PricePerCoin decimal.Decimal
	MinCoins     int64
	MaxCoins     int64
	Currency     string
}

func DefaultCoinPolicy() CoinPolicy {
	return CoinPolicy{
		PricePerCoin: decimal.NewFromInt(100),
		MinCoins:     1,
		MaxCoins:     100_000,
		Currency:     "VND",
	}
}

// CoinService sells coins for wallet cash or for an external payment.
type CoinService struct {
	base
	wallets *WalletService
	catalog *Catalog
	gateway gateway.Gateway
	policy  CoinPolicy
}

// NewCoinService accepts a nil gateway; gateway purchases then fail with
// ErrGatewayUnavailable.
func NewCoinService(wallets *WalletService, catalog *Catalog, gw gateway.Gateway, policy CoinPolicy) *CoinService {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &CoinService{
		base:    wallets.base,
		wallets: wallets,
		catalog: catalog,
		gateway: gw,
		policy:  policy,
	}
}

func (s *CoinService) Packages() []models.CoinPackage { return s.catalog.Packages() }

// Quote resolves what coinAmount of packageID costs. An empty or "custom"
// package is priced per coin without a bonus. coinAmount may be zero when a
// package is named.
func (s *CoinService) Quote(coinAmount int64, packageID string) (*models.CoinQuote, error) {
	packageID = strings.TrimSpace(packageID)
	if packageID != "" && packageID != CustomPackageID {
		pkg, ok := s.catalog.Lookup(packageID)
		if !ok {
			return nil, models.NewValidationError("packageId", "unknown coin package "+packageID)
		}
		if coinAmount == 0 {
			coinAmount = pkg.BaseCoins
		}
		if err := s.validateCoins(coinAmount); err != nil {
			return nil, err
		}
		return &models.CoinQuote{
			PackageID:  pkg.ID,
			BaseCoins:  pkg.BaseCoins,
			BonusCoins: pkg.BonusCoins,
			TotalCoins: pkg.TotalCoins(),
			Price:      pkg.Price,
		}, nil
	}

	if err := s.validateCoins(coinAmount); err != nil {
		return nil, err
	}
	return &models.CoinQuote{
		PackageID:  CustomPackageID,
		BaseCoins:  coinAmount,
		TotalCoins: coinAmount,
		Price:      s.policy.PricePerCoin.Mul(decimal.NewFromInt(coinAmount)),
		Custom:     true,
	}, nil
}

func (s *CoinService) validateCoins(amount int64) error {
	if amount < s.policy.MinCoins || amount > s.policy.MaxCoins {
		return models.NewValidationError("coinAmount",
			fmt.Sprintf("must be between %d and %d", s.policy.MinCoins, s.policy.MaxCoins))
	}
	return nil
}

func coinDescription(verb string, q *models.CoinQuote) string {
	if q.BonusCoins > 0 {
		return fmt.Sprintf("%s %d coins (+%d bonus)", verb, q.TotalCoins, q.BonusCoins)
	}
	return fmt.Sprintf("%s %d coins", verb, q.TotalCoins)
}

func purchaseType(q *models.CoinQuote) models.TransactionType {
	if q.BonusCoins > 0 {
		return models.TxBonusCoins
	}
	return models.TxPurchaseCoins
}

type CoinPurchase struct {
	Quote       *models.CoinQuote   `json:"quote"`
	CashEntry   *models.LedgerEntry `json:"cashEntry"`
	CoinEntry   *models.LedgerEntry `json:"coinEntry"`
	CashBalance decimal.Decimal     `json:"cashBalance"`
	CoinBalance int64               `json:"coinBalance"`
}

// PurchaseWithWallet exchanges available cash for coins in one unit of
// work: a CASH debit and a COIN credit, or nothing.
func (s *CoinService) PurchaseWithWallet(ctx context.Context, userID, coinAmount int64, packageID string) (*CoinPurchase, error) {
	quote, err := s.Quote(coinAmount, packageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.wallets.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}

	out := &CoinPurchase{Quote: quote}
	err = s.mutate(ctx, userID, func(u *unit) error {
		w := u.wallet
		if err := w.EnsureActive("purchase coins"); err != nil {
			return err
		}
		if err := w.DeductCash(quote.Price, u.now); err != nil {
			return err
		}
		cash := models.NewCashEntry(w, models.TxPurchaseCoins, models.Debit, quote.Price).
			WithReference(models.RefCoinPurchase, quote.PackageID)
		cash.Description = coinDescription("Bought", quote)
		if err := u.record(cash); err != nil {
			return err
		}

		if err := w.AddCoins(quote.TotalCoins, u.now); err != nil {
			return err
		}
		coins := models.NewCoinEntry(w, purchaseType(quote), models.Credit, quote.TotalCoins).
			WithReference(models.RefCoinPurchase, quote.PackageID)
		coins.Description = coinDescription("Received", quote)
		if err := u.record(coins); err != nil {
			return err
		}

		out.CashEntry, out.CoinEntry = cash, coins
		out.CashBalance, out.CoinBalance = w.CashBalance, w.CoinBalance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("User %d bought %d coins (%s) for %s from wallet cash", userID, quote.TotalCoins, quote.PackageID, quote.Price)
	s.notify(userID, "Coins purchased", coinDescription("You received", quote)+".", CategoryCoins)
	return out, nil
}

type CoinCheckout struct {
	Quote    *models.CoinQuote `json:"quote"`
	Checkout *gateway.Checkout `json:"checkout"`
}

// PurchaseWithGateway opens an external checkout. Coins are credited only
// when the gateway reports the payment, through HandleCoinPayment.
func (s *CoinService) PurchaseWithGateway(ctx context.Context, userID, coinAmount int64, packageID, successURL, cancelURL string) (*CoinCheckout, error) {
	quote, err := s.Quote(coinAmount, packageID)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}
	if coinAmount == 0 {
		coinAmount = quote.BaseCoins
	}

	checkout, err := s.gateway.CreateCheckout(ctx, gateway.CheckoutRequest{
		Amount:      quote.Price,
		Currency:    s.policy.Currency,
		Description: coinDescription("Buy", quote),
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		Metadata: map[string]string{
			MetaPurpose:    PurposeCoinPurchase,
			MetaUserID:     strconv.FormatInt(userID, 10),
			MetaPackageID:  quote.PackageID,
			MetaCoinAmount: strconv.FormatInt(coinAmount, 10),
			MetaTotalCoins: strconv.FormatInt(quote.TotalCoins, 10),
			MetaBonusCoins: strconv.FormatInt(quote.BonusCoins, 10),
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Checkout %s opened for %d coins, user %d, amount %s", checkout.Reference, quote.TotalCoins, userID, quote.Price)
	return &CoinCheckout{Quote: quote, Checkout: checkout}, nil
}

func metaInt(meta map[string]string, key string) (int64, error) {
	raw, ok := meta[key]
	if !ok {
		return 0, models.NewValidationError(key, "missing from payment metadata")
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, models.NewValidationError(key, "is not a number")
	}
	return v, nil
}

// HandleCoinPayment credits the coins of a paid checkout. Only the coin
// balance changes; redelivery of the same reference is a no-op.
func (s *CoinService) HandleCoinPayment(ctx context.Context, n gateway.Notification) (*DepositResult, error) {
	userID, err := metaInt(n.Metadata, MetaUserID)
	if err != nil {
		return nil, err
	}
	total, err := metaInt(n.Metadata, MetaTotalCoins)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, models.NewValidationError(MetaTotalCoins, "must be greater than zero")
	}
	var bonus int64
	if _, ok := n.Metadata[MetaBonusCoins]; ok {
		if bonus, err = metaInt(n.Metadata, MetaBonusCoins); err != nil {
			return nil, err
		}
	}

	quote := &models.CoinQuote{PackageID: n.Metadata[MetaPackageID], TotalCoins: total, BonusCoins: bonus}
	return s.wallets.CreditCoinsFromPayment(ctx, userID, total, purchaseType(quote),
		coinDescription("Bought", quote)+" via payment gateway", n.Reference)
}

// RefundCoins gives coins back, for example after a cancelled course
// purchase.
func (s *CoinService) RefundCoins(ctx context.Context, userID, amount int64, reason, refType, refID string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("amount", "must be greater than zero")
	}
	if refType == "" {
		refType = models.RefCoinRefund
	}
	desc := "Coin refund"
	if reason = strings.TrimSpace(reason); reason != "" {
		desc += ": " + reason
	}
	entry, err := s.wallets.AddCoins(ctx, CoinOp{
		UserID:        userID,
		Amount:        amount,
		Type:          models.TxRefundCoins,
		Description:   desc,
		ReferenceType: refType,
		ReferenceID:   refID,
	})
	if err != nil {
		return nil, err
	}
	s.notify(userID, "Coins refunded", fmt.Sprintf("%d coins were returned to your wallet.", amount), CategoryCoins)
	return entry, nil
}
