package service

import (
	"context"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/events"
	"github.com/Fi44er/wallet_ledger/internal/locker"
	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/internal/repository"
	"github.com/Fi44er/wallet_ledger/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	GetWalletByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*models.Wallet, error)
	GetWalletForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*models.Wallet, error)
	CreateWalletIfMissing(ctx context.Context, userID int64) (*models.Wallet, bool, error)
	SaveWallet(ctx context.Context, tx *gorm.DB, wallet *models.Wallet) error
	GetWalletTotals(ctx context.Context) (*repository.WalletTotals, error)

	CreateLedgerEntry(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) error
	FindCompletedEntryByKey(ctx context.Context, tx *gorm.DB, key string) (*models.LedgerEntry, error)
	GetLedgerEntry(ctx context.Context, id uint64) (*models.LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, walletID uint64, filter repository.EntryFilter, page models.Page) ([]models.LedgerEntry, int64, error)
	CompletedEntries(ctx context.Context, walletID uint64) ([]models.LedgerEntry, error)
	CountEntriesByType(ctx context.Context, walletID uint64) (map[models.TransactionType]int64, error)

	CreateWithdrawal(ctx context.Context, tx *gorm.DB, withdrawal *models.WithdrawalRequest) error
	SaveWithdrawal(ctx context.Context, tx *gorm.DB, withdrawal *models.WithdrawalRequest) error
	GetWithdrawalByID(ctx context.Context, tx *gorm.DB, id uint64) (*models.WithdrawalRequest, error)
	GetWithdrawalForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*models.WithdrawalRequest, error)
	CountHoldingWithdrawals(ctx context.Context, tx *gorm.DB, userID int64) (int64, error)
	SumHoldingWithdrawals(ctx context.Context, tx *gorm.DB, userID int64) (decimal.Decimal, error)
	ListWithdrawalsByUser(ctx context.Context, userID int64, page models.Page) ([]models.WithdrawalRequest, int64, error)
	ListWithdrawalsByStatus(ctx context.Context, status models.WithdrawalStatus, page models.Page) ([]models.WithdrawalRequest, int64, error)
	ListExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	GetWithdrawalTotals(ctx context.Context, userID *int64) (*repository.WithdrawalTotals, error)
}

type Category string

const (
	CategoryWallet     Category = "WALLET"
	CategoryWithdrawal Category = "WITHDRAWAL"
	CategoryCoins      Category = "COINS"
	// CategoryReview messages go to reviewers, not to the user.
	CategoryReview Category = "REVIEW"
)

// Notifier delivers a message about userID. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, userID int64, subject, body string, category Category) error
}

// LogNotifier only writes notifications to the log.
type LogNotifier struct {
	Logger *utils.Logger
}

func (n LogNotifier) Notify(_ context.Context, userID int64, subject, body string, category Category) error {
	n.Logger.Infof("notify user=%d category=%s subject=%q", userID, category, subject)
	return nil
}

// Deps are the collaborators shared by all services.
type Deps struct {
	Repo      Repository
	Locker    locker.Locker
	Publisher events.Publisher
	Notifier  Notifier
	Logger    *utils.Logger
	Clock     func() time.Time
}

type base struct {
	repo      Repository
	locker    locker.Locker
	publisher events.Publisher
	notifier  Notifier
	logger    *utils.Logger
	clock     func() time.Time
}

func newBase(d Deps) base {
	b := base{
		repo:      d.Repo,
		locker:    d.Locker,
		publisher: d.Publisher,
		notifier:  d.Notifier,
		logger:    d.Logger,
		clock:     d.Clock,
	}
	if b.logger == nil {
		b.logger = utils.Silent()
	}
	if b.locker == nil {
		b.locker = locker.NewMemory()
	}
	if b.publisher == nil {
		b.publisher = events.Nop{}
	}
	if b.notifier == nil {
		b.notifier = LogNotifier{Logger: b.logger}
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

func (b *base) now() time.Time { return b.clock().UTC() }

const sideEffectTimeout = 10 * time.Second

// notify and publish never block the caller and never fail the operation
// that triggered them.
func (b *base) notify(userID int64, subject, body string, category Category) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := b.notifier.Notify(ctx, userID, subject, body, category); err != nil {
			b.logger.Warnf("Failed to notify user %d about %q: %v", userID, subject, err)
		}
	}()
}

func (b *base) publish(evs ...*events.Event) {
	if len(evs) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		for _, ev := range evs {
			if err := b.publisher.Publish(ctx, ev); err != nil {
				b.logger.Warnf("Failed to publish %s for user %d: %v", ev.EventType, ev.UserID, err)
			}
		}
	}()
}
