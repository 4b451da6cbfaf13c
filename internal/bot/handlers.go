package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdStart   = "/start"
	cmdPending = "/pending"
	cmdSweep   = "/sweep"
	cmdCancel  = "/cancel"
)

const helpText = "Withdrawal review console.\n\n" +
	"/pending [page] - pending requests by priority\n" +
	"/sweep - expire overdue requests now\n" +
	"/cancel - abort the current action"

// command returns the command word of text without a @botname suffix.
func command(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := fields[0]
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	b.withReviewer(func(ctx context.Context, msg *tgbotapi.Message, reviewerID int64) {
		text := strings.TrimSpace(msg.Text)
		chatID := msg.Chat.ID
		b.logger.Infof("Processing message from reviewer %d: %s", reviewerID, text)

		if b.getUserState(reviewerID) == stateAwaitingRejectReason && !strings.HasPrefix(text, "/") {
			b.handleRejectReason(ctx, chatID, reviewerID, text)
			return
		}

		cmd, args := command(text)
		switch cmd {
		case cmdStart:
			b.sendMessage(chatID, escape(helpText), reviewMenu())
		case cmdPending:
			page := 0
			if len(args) > 0 {
				if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
					page = n - 1
				}
			}
			b.sendPendingPage(ctx, chatID, page)
		case cmdSweep:
			b.handleSweep(ctx, chatID)
		case cmdCancel:
			b.setState(reviewerID, stateDefault)
			b.sendMessage(chatID, "Action cancelled.", reviewMenu())
		default:
			b.sendMessage(chatID, "Unknown command. Use /start to see what I can do.", reviewMenu())
		}
	})(ctx, msg)
}

func (b *Bot) handleSweep(ctx context.Context, chatID int64) {
	n, err := b.withdrawals.SweepExpired(ctx, time.Time{})
	if err != nil {
		b.logger.Errorf("Manual sweep failed: %v", err)
	}
	text := fmt.Sprintf("Expired %d withdrawal request(s).", n)
	if err != nil {
		text += " Some requests could not be expired, see the logs."
	}
	b.sendMessage(chatID, text, reviewMenu())
}

func (b *Bot) handleRejectReason(ctx context.Context, chatID, reviewerID int64, reason string) {
	id := b.getUserActionData(reviewerID)
	b.setState(reviewerID, stateDefault)
	if id == 0 {
		b.sendMessage(chatID, "Nothing to reject. Pick a request from /pending first.", reviewMenu())
		return
	}

	r, err := b.withdrawals.Reject(ctx, id, reviewerID, reason)
	if err != nil {
		b.sendMessage(chatID, b.reviewError(id, err), reviewMenu())
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("❌ Withdrawal #%d rejected, %s returned to the user.", r.ID, r.Amount.String()), reviewMenu())
}
