package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	walletdb "github.com/Fi44er/wallet_ledger/db"
	"github.com/Fi44er/wallet_ledger/internal/gateway"
	"github.com/Fi44er/wallet_ledger/internal/repository"
	"github.com/Fi44er/wallet_ledger/utils"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const testPin = "123456"

type sentNotification struct {
	UserID   int64
	Subject  string
	Category Category
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, subject, _ string, category Category) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Subject: subject, Category: category})
	return nil
}

func (n *recordingNotifier) count(category Category) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Category == category {
			c++
		}
	}
	return c
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []gateway.CheckoutRequest
	err      error
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req gateway.CheckoutRequest) (*gateway.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	ref := fmt.Sprintf("chk-%d", len(g.requests))
	return &gateway.Checkout{Reference: ref, RedirectURL: "https://pay.example/" + ref}, nil
}

func (g *fakeGateway) last() gateway.CheckoutRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type testEnv struct {
	db          *gorm.DB
	repo        *repository.Repository
	notifier    *recordingNotifier
	gateway     *fakeGateway
	wallets     *WalletService
	withdrawals *WithdrawalService
	coins       *CoinService
	payments    *PaymentService

	mu  sync.Mutex
	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "wallet.db")), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := walletdb.Migrate(gdb, true, utils.Silent()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		db:       gdb,
		repo:     repository.NewRepository(gdb, utils.Silent()),
		notifier: &recordingNotifier{},
		gateway:  &fakeGateway{},
		now:      time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	deps := Deps{
		Repo:     env.repo,
		Notifier: env.notifier,
		Logger:   utils.Silent(),
		Clock:    env.clock,
	}
	env.wallets = NewWalletService(deps, WalletPolicy{PinHashCost: bcrypt.MinCost, TOTPIssuer: "Test"})
	env.withdrawals = NewWithdrawalService(env.wallets, DefaultWithdrawalPolicy())
	env.coins = NewCoinService(env.wallets, DefaultCatalog(), env.gateway, DefaultCoinPolicy())
	env.payments = NewPaymentService(env.wallets, env.coins, env.gateway, "VND")
	return env
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var fundSeq int

// fund deposits amount with a fresh external reference.
func (e *testEnv) fund(t *testing.T, userID int64, amount int64) {
	t.Helper()
	fundSeq++
	ref := fmt.Sprintf("FUND-%d-%d", userID, fundSeq)
	if _, err := e.wallets.DepositCash(context.Background(), userID, dec(amount), ref, ""); err != nil {
		t.Fatalf("fund user %d: %v", userID, err)
	}
}

// prepare funds a wallet, sets the PIN and a bank account on file.
func (e *testEnv) prepare(t *testing.T, userID int64, cash int64) {
	t.Helper()
	ctx := context.Background()
	if cash > 0 {
		e.fund(t, userID, cash)
	}
	if err := e.wallets.SetPIN(ctx, userID, testPin); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	_, err := e.wallets.UpdateBankAccount(ctx, userID, BankAccount{
		BankName:          "Vietcombank",
		BankAccountNumber: "0123456789",
		BankAccountName:   "NGUYEN VAN A",
	})
	if err != nil {
		t.Fatalf("bank account: %v", err)
	}
}

func (e *testEnv) balance(t *testing.T, userID int64) *Balance {
	t.Helper()
	b, err := e.wallets.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func (e *testEnv) mustReconcile(t *testing.T, userID int64) {
	t.Helper()
	if rec, err := e.wallets.Reconcile(context.Background(), userID); err != nil {
		t.Fatalf("reconcile user %d: %v (%+v)", userID, err, rec)
	}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want int64) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %d", name, got, want)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
