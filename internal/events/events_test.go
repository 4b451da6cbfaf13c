package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/shopspring/decimal"
)

func TestFromEntryCoin(t *testing.T) {
	w := &models.Wallet{ID: 7, CoinBalance: 110}
	entry := models.NewCoinEntry(w, models.TxBonusCoins, models.Credit, 110).
		WithReference(models.RefCoinPurchase, "basic")
	entry.ID = 3
	entry.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ev := FromEntry(42, entry)
	if ev.EventType != LedgerEntryCreated || ev.UserID != 42 || ev.WalletID != 7 || ev.EntryID != 3 {
		t.Fatalf("unexpected identity fields: %+v", ev)
	}
	if !ev.Amount.Equal(decimal.NewFromInt(110)) || !ev.BalanceAfter.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("amount/balance = %s/%s", ev.Amount, ev.BalanceAfter)
	}
	if ev.Key() != "42" {
		t.Fatalf("Key() = %q", ev.Key())
	}
}

func TestEventJSONKeepsDecimalPrecision(t *testing.T) {
	ev := &Event{EventType: WithdrawalCreated, Amount: decimal.RequireFromString("300000.50")}
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Event
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.Amount.Equal(ev.Amount) {
		t.Fatalf("amount round trip: got %s", decoded.Amount)
	}
}
