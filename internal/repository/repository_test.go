package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	walletdb "github.com/Fi44er/wallet_ledger/db"
	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/utils"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "repo.db")), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := walletdb.Migrate(gdb, true, utils.Silent()); err != nil {
		t.Fatal(err)
	}
	return NewRepository(gdb, utils.Silent())
}

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func seedWithdrawal(t *testing.T, r *Repository, walletID uint64, n, priority int, status models.WithdrawalStatus, created time.Time) *models.WithdrawalRequest {
	t.Helper()
	w := &models.WithdrawalRequest{
		RequestCode:       fmt.Sprintf("WD-%03d", n),
		UserID:            1,
		WalletID:          walletID,
		Amount:            decimal.NewFromInt(200_000),
		Fee:               decimal.NewFromInt(5_000),
		NetAmount:         decimal.NewFromInt(195_000),
		BankName:          "Vietcombank",
		BankAccountNumber: "0123456789",
		BankAccountName:   "NGUYEN VAN A",
		Status:            status,
		Priority:          priority,
		CreatedAt:         created,
		UpdatedAt:         created,
		ExpiresAt:         created.Add(72 * time.Hour),
	}
	if err := r.CreateWithdrawal(context.Background(), nil, w); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestCreateWalletIfMissing(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	first, created, err := r.CreateWalletIfMissing(ctx, 10)
	if err != nil || !created {
		t.Fatalf("first create: %v %v", created, err)
	}
	second, created, err := r.CreateWalletIfMissing(ctx, 10)
	if err != nil || created {
		t.Fatalf("second create: %v %v", created, err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %d vs %d", first.ID, second.ID)
	}
	if missing, err := r.GetWalletByUserID(ctx, nil, 11); err != nil || missing != nil {
		t.Errorf("unknown user: %v %v", missing, err)
	}
}

func TestInTransactionRollsBack(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	wallet, _, err := r.CreateWalletIfMissing(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = r.InTransaction(ctx, func(tx *gorm.DB) error {
		w, err := r.GetWalletForUpdate(ctx, tx, 1)
		if err != nil {
			return err
		}
		w.CashBalance = decimal.NewFromInt(999)
		if err := r.SaveWallet(ctx, tx, w); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	func() {
		defer func() { _ = recover() }()
		_ = r.InTransaction(ctx, func(tx *gorm.DB) error {
			entry := models.NewCashEntry(wallet, models.TxDepositCash, models.Credit, decimal.NewFromInt(1))
			if err := r.CreateLedgerEntry(ctx, tx, entry); err != nil {
				return err
			}
			panic("mid-transaction")
		})
	}()

	stored, err := r.GetWalletByUserID(ctx, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.CashBalance.IsZero() {
		t.Errorf("balance = %s after rollback", stored.CashBalance)
	}
	entries, err := r.CompletedEntries(ctx, wallet.ID)
	if err != nil || len(entries) != 0 {
		t.Errorf("entries after panic rollback: %d %v", len(entries), err)
	}
}

func TestIdempotencyKeyIsUnique(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	wallet, _, _ := r.CreateWalletIfMissing(ctx, 1)

	key := models.PaymentKey(models.CurrencyCash, "PAY-1")
	for i, wantErr := range []bool{false, true} {
		entry := models.NewCashEntry(wallet, models.TxDepositCash, models.Credit, decimal.NewFromInt(10))
		entry.IdempotencyKey = &key
		err := r.CreateLedgerEntry(ctx, nil, entry)
		if (err != nil) != wantErr {
			t.Errorf("insert %d: err = %v", i, err)
		}
	}

	found, err := r.FindCompletedEntryByKey(ctx, nil, key)
	if err != nil || found == nil {
		t.Fatalf("lookup: %v %v", found, err)
	}
	if none, _ := r.FindCompletedEntryByKey(ctx, nil, "PAYMENT:CASH:other"); none != nil {
		t.Error("unexpected entry for unknown key")
	}
}

func TestReviewQueueOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	seedWithdrawal(t, r, 1, 1, 5, models.WithdrawalPending, t0)
	seedWithdrawal(t, r, 1, 2, 1, models.WithdrawalPending, t0.Add(2*time.Hour))
	seedWithdrawal(t, r, 1, 3, 1, models.WithdrawalPending, t0.Add(time.Hour))
	seedWithdrawal(t, r, 1, 4, 1, models.WithdrawalRejected, t0)

	list, total, err := r.ListWithdrawalsByStatus(ctx, models.WithdrawalPending, models.Page{Size: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("total = %d", total)
	}
	var got []string
	for _, w := range list {
		got = append(got, w.RequestCode)
	}
	want := []string{"WD-003", "WD-002", "WD-001"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	count, err := r.CountHoldingWithdrawals(ctx, nil, 1)
	if err != nil || count != 3 {
		t.Errorf("holding = %d %v", count, err)
	}
	sum, err := r.SumHoldingWithdrawals(ctx, nil, 1)
	if err != nil || !sum.Equal(decimal.NewFromInt(600_000)) {
		t.Errorf("holding sum = %s %v", sum, err)
	}
}

func TestListExpiredPendingIDs(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	old := seedWithdrawal(t, r, 1, 1, 5, models.WithdrawalPending, t0.Add(-100*time.Hour))
	seedWithdrawal(t, r, 1, 2, 5, models.WithdrawalPending, t0)
	seedWithdrawal(t, r, 1, 3, 5, models.WithdrawalCancelled, t0.Add(-100*time.Hour))

	ids, err := r.ListExpiredPendingIDs(ctx, t0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != old.ID {
		t.Errorf("expired ids = %v, want [%d]", ids, old.ID)
	}
}

func TestWithdrawalTotals(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	seedWithdrawal(t, r, 1, 1, 5, models.WithdrawalCompleted, t0)
	seedWithdrawal(t, r, 1, 2, 5, models.WithdrawalCompleted, t0)
	seedWithdrawal(t, r, 1, 3, 5, models.WithdrawalPending, t0)

	totals, err := r.GetWithdrawalTotals(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if totals.ByStatus[models.WithdrawalCompleted] != 2 || totals.ByStatus[models.WithdrawalPending] != 1 {
		t.Errorf("by status = %v", totals.ByStatus)
	}
	if !totals.PaidOut.Equal(decimal.NewFromInt(390_000)) || !totals.FeesCollected.Equal(decimal.NewFromInt(10_000)) {
		t.Errorf("paid out %s, fees %s", totals.PaidOut, totals.FeesCollected)
	}
	if !totals.PendingAmount.Equal(decimal.NewFromInt(200_000)) {
		t.Errorf("pending = %s", totals.PendingAmount)
	}

	other := int64(2)
	totals, err = r.GetWithdrawalTotals(ctx, &other)
	if err != nil || len(totals.ByStatus) != 0 || !totals.PaidOut.IsZero() {
		t.Errorf("other user totals = %+v %v", totals, err)
	}
}
