package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/events"
	"github.com/Fi44er/wallet_ledger/internal/locker"
	"github.com/Fi44er/wallet_ledger/internal/models"
	"gorm.io/gorm"
)

// unit is one locked mutation of one wallet. Everything written through it
// commits or rolls back together.
type unit struct {
	ctx     context.Context
	tx      *gorm.DB
	repo    Repository
	wallet  *models.Wallet
	now     time.Time
	dirty   bool
	entries []*models.LedgerEntry
	evs     []*events.Event
	after   []func()
}

func (u *unit) markDirty() { u.dirty = true }

// record appends a ledger entry for the wallet in the same transaction.
func (u *unit) record(entry *models.LedgerEntry) error {
	entry.WalletID = u.wallet.ID
	entry.CreatedAt = u.now
	if err := u.repo.CreateLedgerEntry(u.ctx, u.tx, entry); err != nil {
		return err
	}
	u.entries = append(u.entries, entry)
	u.dirty = true
	return nil
}

func (u *unit) emit(ev *events.Event) { u.evs = append(u.evs, ev) }

// onCommit registers fn to run once the transaction has committed.
func (u *unit) onCommit(fn func()) { u.after = append(u.after, fn) }

// mutate takes the wallet lock, opens a transaction, re-reads the wallet row
// under a row lock and hands it to fn. The wallet is saved if fn changed it.
func (b *base) mutate(ctx context.Context, userID int64, fn func(u *unit) error) error {
	unlock, err := b.locker.Lock(ctx, locker.WalletKey(userID))
	if err != nil {
		return fmt.Errorf("failed to lock wallet of user %d: %w", userID, err)
	}
	defer unlock()

	u := &unit{ctx: ctx, repo: b.repo, now: b.now()}
	err = b.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		u.tx = tx
		wallet, err := b.repo.GetWalletForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return &models.NotFoundError{Entity: "wallet of user", Key: userID}
		}
		u.wallet = wallet

		if err := fn(u); err != nil {
			return err
		}
		if !u.dirty {
			return nil
		}
		return b.repo.SaveWallet(ctx, tx, wallet)
	})
	if err != nil {
		return err
	}

	evs := u.evs
	for _, entry := range u.entries {
		evs = append(evs, events.FromEntry(userID, entry))
	}
	b.publish(evs...)
	for _, fn := range u.after {
		fn()
	}
	return nil
}
