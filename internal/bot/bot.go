// Package bot is the telegram side of the wallet service: a review console
// for the admin chat and the channel user notifications are delivered on.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Withdrawals is the review side of the withdrawal workflow.
type Withdrawals interface {
	ListForReview(ctx context.Context, status models.WithdrawalStatus, page models.Page) (*models.Paged[models.WithdrawalRequest], error)
	GetForReview(ctx context.Context, id uint64) (*models.WithdrawalRequest, error)
	Approve(ctx context.Context, id uint64, reviewerID int64, notes string) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, id uint64, reviewerID int64, reason string) (*models.WithdrawalRequest, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

type Bot struct {
	API         API
	withdrawals Withdrawals
	logger      *utils.Logger
	adminChatID int64

	userStates     map[int64]string
	userActionData map[int64]uint64
	stateMutex     *sync.Mutex
}

func NewBot(api API, withdrawals Withdrawals, adminChatID int64, logger *utils.Logger) *Bot {
	return &Bot{
		API:            api,
		withdrawals:    withdrawals,
		logger:         logger,
		adminChatID:    adminChatID,
		userStates:     make(map[int64]string),
		userActionData: make(map[int64]uint64),
		stateMutex:     &sync.Mutex{},
	}
}

// Start processes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("Starting bot...")
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.API.GetUpdatesChan(cfg)
	for {
		select {
		case <-ctx.Done():
			b.API.StopReceivingUpdates()
			b.logger.Info("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.logger.Debugf("Received update %d", update.UpdateID)
	switch {
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.HandleMessage(ctx, update.Message)
	}
}

func reviewMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(cmdPending),
			tgbotapi.NewKeyboardButton(cmdSweep),
		),
	)
}
