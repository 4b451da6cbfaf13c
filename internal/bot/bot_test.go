package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/internal/service"
	"github.com/Fi44er/wallet_ledger/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

const adminChat = int64(-1001)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	answered []tgbotapi.CallbackConfig
	updates  chan tgbotapi.Update
	fail     error
}

func (a *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return tgbotapi.Message{}, a.fail
	}
	a.sent = append(a.sent, c)
	return tgbotapi.Message{}, nil
}

func (a *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		a.answered = append(a.answered, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (a *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return a.updates }

func (a *fakeAPI) StopReceivingUpdates() {}

func (a *fakeAPI) messages() []tgbotapi.MessageConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range a.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (a *fakeAPI) edits() []tgbotapi.EditMessageTextConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range a.sent {
		if m, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (a *fakeAPI) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	msgs := a.messages()
	if len(msgs) == 0 {
		t.Fatal("no message sent")
	}
	return msgs[len(msgs)-1]
}

type fakeWithdrawals struct {
	requests map[uint64]*models.WithdrawalRequest
	approved []uint64
	rejected map[uint64]string
	swept    int
}

func newFakeWithdrawals(n int) *fakeWithdrawals {
	f := &fakeWithdrawals{requests: map[uint64]*models.WithdrawalRequest{}, rejected: map[uint64]string{}}
	for i := 1; i <= n; i++ {
		f.requests[uint64(i)] = &models.WithdrawalRequest{
			ID:                uint64(i),
			RequestCode:       "WD-TEST",
			UserID:            42,
			Amount:            decimal.NewFromInt(200_000),
			Fee:               decimal.NewFromInt(5_000),
			NetAmount:         decimal.NewFromInt(195_000),
			BankName:          "Vietcombank",
			BankAccountNumber: "0123456789",
			BankAccountName:   "NGUYEN VAN A",
			Status:            models.WithdrawalPending,
			Priority:          5,
			ExpiresAt:         time.Date(2025, 3, 13, 9, 0, 0, 0, time.UTC),
		}
	}
	return f
}

func (f *fakeWithdrawals) ListForReview(_ context.Context, status models.WithdrawalStatus, page models.Page) (*models.Paged[models.WithdrawalRequest], error) {
	var all []models.WithdrawalRequest
	for id := uint64(1); id <= uint64(len(f.requests)); id++ {
		if r := f.requests[id]; r.Status == status {
			all = append(all, *r)
		}
	}
	out := &models.Paged[models.WithdrawalRequest]{Total: int64(len(all)), Page: page.Number, Size: page.Size}
	if start := page.Offset(); start < len(all) {
		end := min(start+page.Size, len(all))
		out.Items = all[start:end]
	}
	return out, nil
}

func (f *fakeWithdrawals) GetForReview(_ context.Context, id uint64) (*models.WithdrawalRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, &models.NotFoundError{Entity: "withdrawal", Key: id}
	}
	cp := *r
	return &cp, nil
}

func (f *fakeWithdrawals) Approve(ctx context.Context, id uint64, _ int64, _ string) (*models.WithdrawalRequest, error) {
	r, err := f.GetForReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := f.requests[id].Transition(models.WithdrawalCompleted); err != nil {
		return nil, err
	}
	f.approved = append(f.approved, id)
	r.Status = models.WithdrawalCompleted
	return r, nil
}

func (f *fakeWithdrawals) Reject(ctx context.Context, id uint64, _ int64, reason string) (*models.WithdrawalRequest, error) {
	r, err := f.GetForReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := f.requests[id].Transition(models.WithdrawalRejected); err != nil {
		return nil, err
	}
	f.rejected[id] = reason
	return r, nil
}

func (f *fakeWithdrawals) SweepExpired(context.Context, time.Time) (int, error) {
	f.swept++
	return 2, nil
}

func newTestBot(n int) (*Bot, *fakeAPI, *fakeWithdrawals) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	w := newFakeWithdrawals(n)
	return NewBot(api, w, adminChat, utils.Silent()), api, w
}

func adminMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: adminChat}, From: &tgbotapi.User{ID: 7}, Text: text}
}

func adminCallback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{ID: "cb", From: &tgbotapi.User{ID: 7}, Message: adminMessage(""), Data: data}
}

func inlineData(t *testing.T, markup interface{}) []string {
	t.Helper()
	kb, ok := markup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("markup is %T", markup)
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			out = append(out, *btn.CallbackData)
		}
	}
	return out
}

func TestCommand(t *testing.T) {
	tests := []struct {
		in   string
		cmd  string
		args int
	}{
		{"/pending", "/pending", 0},
		{"/pending@wallet_bot 3", "/pending", 1},
		{"  /SWEEP ", "/sweep", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		cmd, args := command(tt.in)
		if cmd != tt.cmd || len(args) != tt.args {
			t.Errorf("command(%q) = %q %v", tt.in, cmd, args)
		}
	}
}

func TestNonReviewerIsRefused(t *testing.T) {
	b, api, w := newTestBot(1)
	b.HandleMessage(context.Background(), &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, From: &tgbotapi.User{ID: 42}, Text: "/sweep"})

	if w.swept != 0 {
		t.Error("sweep ran for a non-reviewer")
	}
	if msg := api.lastMessage(t); msg.ChatID != 42 || !strings.Contains(msg.Text, "notifications") {
		t.Errorf("reply = %+v", msg)
	}

	b.handleCallbackQuery(context.Background(), &tgbotapi.CallbackQuery{
		ID: "cb", From: &tgbotapi.User{ID: 42}, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}}, Data: cbApproveOK + "1",
	})
	if len(w.approved) != 0 {
		t.Error("approved from a non-reviewer chat")
	}
}

func TestPendingPagination(t *testing.T) {
	b, api, _ := newTestBot(7)
	b.HandleMessage(context.Background(), adminMessage("/pending"))

	msg := api.lastMessage(t)
	if !strings.Contains(msg.Text, "page 1 of 2") {
		t.Errorf("text = %q", msg.Text)
	}
	data := inlineData(t, msg.ReplyMarkup)
	if len(data) != 2*reviewPageSize+1 || data[len(data)-1] != cbPage+"1" {
		t.Fatalf("buttons = %v", data)
	}

	b.handleCallbackQuery(context.Background(), adminCallback(cbPage+"1"))
	msg = api.lastMessage(t)
	data = inlineData(t, msg.ReplyMarkup)
	if len(data) != 2*2+1 || data[len(data)-1] != cbPage+"0" {
		t.Errorf("second page buttons = %v", data)
	}
}

func TestPendingEmpty(t *testing.T) {
	b, api, _ := newTestBot(0)
	b.HandleMessage(context.Background(), adminMessage("/pending 3"))
	if msg := api.lastMessage(t); !strings.Contains(msg.Text, "No pending") {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestApproveFlow(t *testing.T) {
	b, api, w := newTestBot(1)
	ctx := context.Background()

	b.handleCallbackQuery(ctx, adminCallback(cbApprove+"1"))
	if len(w.approved) != 0 {
		t.Fatal("approved before confirmation")
	}
	edits := api.edits()
	if len(edits) != 1 || edits[0].ReplyMarkup == nil {
		t.Fatalf("confirmation edit = %+v", edits)
	}

	b.handleCallbackQuery(ctx, adminCallback(cbApproveOK+"1"))
	if len(w.approved) != 1 || w.approved[0] != 1 {
		t.Fatalf("approved = %v", w.approved)
	}
	edits = api.edits()
	if !strings.Contains(edits[len(edits)-1].Text, "195000") {
		t.Errorf("result = %q", edits[len(edits)-1].Text)
	}

	b.handleCallbackQuery(ctx, adminCallback(cbApproveOK+"1"))
	edits = api.edits()
	if !strings.Contains(edits[len(edits)-1].Text, "already COMPLETED") {
		t.Errorf("second approve = %q", edits[len(edits)-1].Text)
	}
}

func TestRejectAsksForReason(t *testing.T) {
	b, api, w := newTestBot(2)
	ctx := context.Background()

	b.handleCallbackQuery(ctx, adminCallback(cbReject+"2"))
	if _, ok := api.lastMessage(t).ReplyMarkup.(tgbotapi.ForceReply); !ok {
		t.Error("reason prompt should force a reply")
	}

	b.HandleMessage(ctx, adminMessage("account name mismatch"))
	if w.rejected[2] != "account name mismatch" {
		t.Fatalf("rejected = %v", w.rejected)
	}
	if b.getUserState(7) != stateDefault {
		t.Error("state not cleared")
	}

	b.handleCallbackQuery(ctx, adminCallback(cbReject+"1"))
	b.HandleMessage(ctx, adminMessage("/cancel"))
	b.HandleMessage(ctx, adminMessage("too late"))
	if _, ok := w.rejected[1]; ok {
		t.Error("reject went through after /cancel")
	}
}

func TestSweepCommand(t *testing.T) {
	b, api, w := newTestBot(0)
	b.HandleMessage(context.Background(), adminMessage("/sweep"))
	if w.swept != 1 || !strings.Contains(api.lastMessage(t).Text, "Expired 2") {
		t.Errorf("swept=%d text=%q", w.swept, api.lastMessage(t).Text)
	}
}

func TestNotifyRouting(t *testing.T) {
	api := &fakeAPI{}
	n := NewNotifier(api, adminChat, utils.Silent())
	ctx := context.Background()

	if err := n.Notify(ctx, 42, "Withdrawal completed", "WD_1 paid", service.CategoryWithdrawal); err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(ctx, 42, "New withdrawal request", "review it", service.CategoryReview); err != nil {
		t.Fatal(err)
	}
	msgs := api.messages()
	if len(msgs) != 2 || msgs[0].ChatID != 42 || msgs[1].ChatID != adminChat {
		t.Fatalf("messages = %+v", msgs)
	}
	if !strings.Contains(msgs[0].Text, `WD\_1`) {
		t.Errorf("body not escaped: %q", msgs[0].Text)
	}

	noAdmin := NewNotifier(api, 0, utils.Silent())
	if err := noAdmin.Notify(ctx, 42, "x", "y", service.CategoryReview); err != nil {
		t.Errorf("review without admin chat: %v", err)
	}

	api.fail = errors.New("blocked by user")
	if err := n.Notify(ctx, 42, "x", "y", service.CategoryWallet); err == nil {
		t.Error("send failure not reported")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	b, api, w := newTestBot(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	api.updates <- tgbotapi.Update{UpdateID: 1, Message: adminMessage("/sweep")}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
	if w.swept != 1 {
		t.Errorf("swept = %d", w.swept)
	}
}
