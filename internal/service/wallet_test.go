package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/internal/repository"
	"github.com/pquerna/otp/totp"
)

func TestDepositCashIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.wallets.DepositCash(ctx, 1, dec(50_000), "PAY-1", "")
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if first.Duplicate {
		t.Fatal("first deposit reported as duplicate")
	}
	second, err := env.wallets.DepositCash(ctx, 1, dec(50_000), "PAY-1", "")
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("second deposit not reported as duplicate")
	}
	if second.Entry.ID != first.Entry.ID {
		t.Errorf("duplicate returned entry %d, want %d", second.Entry.ID, first.Entry.ID)
	}

	b := env.balance(t, 1)
	assertDecimal(t, "cash", b.CashBalance, 50_000)
	history, err := env.wallets.History(ctx, 1, repository.EntryFilter{}, models.Page{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history.Total != 1 {
		t.Errorf("entries = %d, want 1", history.Total)
	}
	env.mustReconcile(t, 1)
}

func TestConcurrentDuplicateDeposits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.wallets.GetOrCreateWallet(ctx, 7); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	duplicates := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.wallets.DepositCash(ctx, 7, dec(10_000), "PAY-RACE", "")
			if err != nil {
				t.Error(err)
				return
			}
			if res.Duplicate {
				mu.Lock()
				duplicates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if duplicates != 7 {
		t.Errorf("duplicates = %d, want 7", duplicates)
	}
	assertDecimal(t, "cash", env.balance(t, 7).CashBalance, 10_000)
	env.mustReconcile(t, 7)
}

func TestDepositValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.wallets.DepositCash(ctx, 1, dec(0), "PAY-0", ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("zero amount: got %v, want validation error", err)
	}
	if _, err := env.wallets.DepositCash(ctx, 1, dec(100), " ", ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("blank reference: got %v, want validation error", err)
	}
}

func TestDeductCoinsInsufficient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.wallets.AddCoins(ctx, CoinOp{UserID: 3, Amount: 20, Type: models.TxEarnCoins}); err != nil {
		t.Fatalf("add coins: %v", err)
	}
	_, err := env.wallets.DeductCoins(ctx, CoinOp{UserID: 3, Amount: 50})
	if !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("got %v, want insufficient balance", err)
	}
	var balErr *models.BalanceError
	if !errors.As(err, &balErr) || balErr.Currency != models.CurrencyCoin {
		t.Errorf("expected coin BalanceError, got %#v", err)
	}

	w, err := env.wallets.GetWallet(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if w.CoinBalance != 20 {
		t.Errorf("coin balance = %d, want 20", w.CoinBalance)
	}
	if w.TotalCoinsEarned != 20 || w.TotalCoinsSpent != 0 {
		t.Errorf("lifetime counters = %d/%d, want 20/0", w.TotalCoinsEarned, w.TotalCoinsSpent)
	}
	env.mustReconcile(t, 3)
}

func TestAddCoinsOnlyCountsEarningTypes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.wallets.AddCoins(ctx, CoinOp{UserID: 4, Amount: 30, Type: models.TxDailyLoginBonus}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.wallets.AddCoins(ctx, CoinOp{UserID: 4, Amount: 15, Type: models.TxRefundCoins}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.wallets.DeductCoins(ctx, CoinOp{UserID: 4, Amount: 10}); err != nil {
		t.Fatal(err)
	}

	w, _ := env.wallets.GetWallet(ctx, 4)
	if w.CoinBalance != 35 || w.TotalCoinsEarned != 30 || w.TotalCoinsSpent != 10 {
		t.Errorf("coins = %d earned = %d spent = %d, want 35/30/10", w.CoinBalance, w.TotalCoinsEarned, w.TotalCoinsSpent)
	}
	env.mustReconcile(t, 4)
}

func TestFreezeAndUnfreeze(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 5, 100_000)

	b, err := env.wallets.FreezeCash(ctx, 5, dec(60_000))
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	assertDecimal(t, "available", b.AvailableCash, 40_000)

	if _, err := env.wallets.FreezeCash(ctx, 5, dec(50_000)); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Errorf("over-freeze: got %v, want insufficient balance", err)
	}
	if _, err := env.wallets.DeductCash(ctx, CashOp{UserID: 5, Amount: dec(50_000), Type: models.TxCoursePurchase}); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Errorf("spending frozen cash: got %v, want insufficient balance", err)
	}
	if _, err := env.wallets.UnfreezeCash(ctx, 5, dec(70_000)); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Errorf("over-unfreeze: got %v, want insufficient balance", err)
	}

	b, err = env.wallets.UnfreezeCash(ctx, 5, dec(60_000))
	if err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	assertDecimal(t, "frozen", b.FrozenCashBalance, 0)
	assertDecimal(t, "cash", b.CashBalance, 100_000)
}

func TestUnfreezeKeepsWithdrawalHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.prepare(t, 8, 1_000_000)

	req, err := env.withdrawals.Create(ctx, withdrawalInput(8, 300_000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = env.wallets.UnfreezeCash(ctx, 8, dec(300_000))
	var balErr *models.BalanceError
	if !errors.As(err, &balErr) || balErr.Currency != models.CurrencyFrozenCash {
		t.Fatalf("releasing a withdrawal hold: got %v, want frozen cash BalanceError", err)
	}
	if balErr.Available != "0" {
		t.Errorf("releasable = %s, want 0", balErr.Available)
	}

	if _, err := env.wallets.FreezeCash(ctx, 8, dec(1_000)); err != nil {
		t.Fatalf("standalone freeze: %v", err)
	}
	env.mustReconcile(t, 8)
	if _, err := env.wallets.UnfreezeCash(ctx, 8, dec(1_001)); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Errorf("unfreeze past standalone hold: got %v, want insufficient balance", err)
	}
	if _, err := env.wallets.UnfreezeCash(ctx, 8, dec(1_000)); err != nil {
		t.Fatalf("unfreeze standalone hold: %v", err)
	}
	assertDecimal(t, "frozen", env.balance(t, 8).FrozenCashBalance, 300_000)

	if _, err := env.withdrawals.Reject(ctx, req.ID, 99, "wrong account"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	b := env.balance(t, 8)
	assertDecimal(t, "frozen", b.FrozenCashBalance, 0)
	assertDecimal(t, "cash", b.CashBalance, 1_000_000)
	env.mustReconcile(t, 8)
}

func TestCashAmountScale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 9, 10_000)
	tiny := decimalFromString(t, "0.004")

	checks := map[string]func() error{
		"deposit": func() error {
			_, err := env.wallets.DepositCash(ctx, 9, tiny, "PAY-TINY", "")
			return err
		},
		"credit": func() error {
			_, err := env.wallets.CreditCash(ctx, CashOp{UserID: 9, Amount: tiny, Type: models.TxRefundCash})
			return err
		},
		"deduct": func() error {
			_, err := env.wallets.DeductCash(ctx, CashOp{UserID: 9, Amount: tiny, Type: models.TxCoursePurchase})
			return err
		},
		"freeze": func() error {
			_, err := env.wallets.FreezeCash(ctx, 9, decimalFromString(t, "10.125"))
			return err
		},
	}
	for name, call := range checks {
		if err := call(); !errors.Is(err, models.ErrValidation) {
			t.Errorf("%s: got %v, want validation error", name, err)
		}
	}

	if _, err := env.wallets.DepositCash(ctx, 9, decimalFromString(t, "0.01"), "PAY-CENT", ""); err != nil {
		t.Errorf("one cent deposit: %v", err)
	}
	env.mustReconcile(t, 9)
}

func TestFrozenWalletRejectsMutations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 6, 100_000)

	if _, err := env.wallets.SetStatus(ctx, 6, models.WalletFrozen); err != nil {
		t.Fatalf("set status: %v", err)
	}
	_, err := env.wallets.DepositCash(ctx, 6, dec(1_000), "PAY-F", "")
	var tErr *models.TransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("got %v, want TransitionError", err)
	}
	if tErr.Current != string(models.WalletFrozen) {
		t.Errorf("current = %s, want FROZEN", tErr.Current)
	}
	assertDecimal(t, "cash", env.balance(t, 6).CashBalance, 100_000)

	if _, err := env.wallets.SetStatus(ctx, 6, models.WalletClosed); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := env.wallets.SetStatus(ctx, 6, models.WalletActive); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Errorf("reopen closed wallet: got %v, want invalid transition", err)
	}
}

func TestPin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.wallets.GetOrCreateWallet(ctx, 8); err != nil {
		t.Fatal(err)
	}

	if err := env.wallets.VerifyPIN(ctx, 8, testPin); !errors.Is(err, models.ErrPinNotSet) {
		t.Errorf("no pin: got %v, want ErrPinNotSet", err)
	}
	for _, bad := range []string{"12345", "1234567", "12a456", ""} {
		if err := env.wallets.SetPIN(ctx, 8, bad); !errors.Is(err, models.ErrValidation) {
			t.Errorf("SetPIN(%q): got %v, want validation error", bad, err)
		}
	}
	if err := env.wallets.SetPIN(ctx, 8, testPin); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if err := env.wallets.VerifyPIN(ctx, 8, testPin); err != nil {
		t.Errorf("verify correct pin: %v", err)
	}
	if err := env.wallets.VerifyPIN(ctx, 8, "654321"); !errors.Is(err, models.ErrPinMismatch) {
		t.Errorf("wrong pin: got %v, want ErrPinMismatch", err)
	}

	w, _ := env.wallets.GetWallet(ctx, 8)
	if w.TransactionPin == testPin {
		t.Error("pin stored in clear text")
	}
}

func TestTwoFALifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	setup, err := env.wallets.SetupTwoFA(ctx, 9, "user9@example.com")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := env.wallets.EnableTwoFA(ctx, 9, "000000"); !errors.Is(err, models.ErrTwoFAMismatch) {
		t.Errorf("enable with wrong code: got %v, want mismatch", err)
	}
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := env.wallets.EnableTwoFA(ctx, 9, code); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !env.balance(t, 9).Require2FA {
		t.Fatal("2FA not required after enabling")
	}
	if _, err := env.wallets.SetupTwoFA(ctx, 9, "user9@example.com"); !errors.Is(err, models.ErrInvalidStateTransition) {
		t.Errorf("setup while enabled: got %v, want invalid transition", err)
	}
	if err := env.wallets.DisableTwoFA(ctx, 9, ""); !errors.Is(err, models.ErrTwoFARequired) {
		t.Errorf("disable without code: got %v, want ErrTwoFARequired", err)
	}
	if err := env.wallets.DisableTwoFA(ctx, 9, code); err != nil {
		t.Fatalf("disable: %v", err)
	}
}

func TestSettleCoursePurchase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 10, 200_000)

	res, err := env.wallets.SettleCoursePurchase(ctx, CoursePurchase{
		BuyerID:     10,
		AuthorID:    11,
		CourseID:    "42",
		CourseTitle: "Go in practice",
		Price:       dec(99_999),
		AuthorShare: decimalFromString(t, "0.7"),
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Charge.ReferenceType != "COURSE_42" {
		t.Errorf("reference type = %s", res.Charge.ReferenceType)
	}
	assertDecimal(t, "buyer cash", env.balance(t, 10).CashBalance, 100_001)
	if got := env.balance(t, 11).CashBalance; got.String() != "69999.3" {
		t.Errorf("author cash = %s, want 69999.3", got)
	}
	env.mustReconcile(t, 10)
	env.mustReconcile(t, 11)
}

func TestHistoryAndGetEntryOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 12, 10_000)
	env.fund(t, 13, 10_000)
	if _, err := env.wallets.AddCoins(ctx, CoinOp{UserID: 12, Amount: 5}); err != nil {
		t.Fatal(err)
	}

	cashOnly, err := env.wallets.History(ctx, 12, repository.EntryFilter{Currency: models.CurrencyCash}, models.Page{})
	if err != nil {
		t.Fatal(err)
	}
	if cashOnly.Total != 1 || len(cashOnly.Items) != 1 {
		t.Fatalf("cash entries = %d, want 1", cashOnly.Total)
	}
	entry := cashOnly.Items[0]
	if _, err := env.wallets.GetEntry(ctx, 12, entry.ID); err != nil {
		t.Errorf("own entry: %v", err)
	}
	if _, err := env.wallets.GetEntry(ctx, 13, entry.ID); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("foreign entry: got %v, want forbidden", err)
	}
	if _, err := env.wallets.GetEntry(ctx, 12, 9999); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing entry: got %v, want not found", err)
	}
}

func TestGlobalStatistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 14, 30_000)
	env.fund(t, 15, 20_000)

	stats, err := env.wallets.GlobalStatistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Wallets != 2 || stats.ActiveWallets != 2 {
		t.Errorf("wallets = %d/%d, want 2/2", stats.Wallets, stats.ActiveWallets)
	}
	assertDecimal(t, "total cash", stats.TotalCash, 50_000)
	assertDecimal(t, "total deposited", stats.TotalDeposited, 50_000)
}
