package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// withReviewer only lets messages from the admin chat through. Anyone else
// is told that the bot is notification-only.
func (b *Bot) withReviewer(handler func(context.Context, *tgbotapi.Message, int64)) func(context.Context, *tgbotapi.Message) {
	return func(ctx context.Context, msg *tgbotapi.Message) {
		if msg.Chat == nil || msg.From == nil {
			return
		}
		if !b.isAdminChat(msg.Chat.ID) {
			b.logger.Debugf("Ignoring message from non-reviewer chat %d", msg.Chat.ID)
			b.sendMessage(msg.Chat.ID, "This bot only delivers wallet notifications.", nil)
			return
		}
		handler(ctx, msg, msg.From.ID)
	}
}
