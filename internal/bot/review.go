package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Fi44er/wallet_ledger/internal/models"
	"github.com/Fi44er/wallet_ledger/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const reviewPageSize = 5

// Callback data prefixes of the review keyboards.
const (
	cbPage      = "wd_page:"
	cbApprove   = "wd_approve:"
	cbApproveOK = "wd_approve_ok:"
	cbReject    = "wd_reject:"
	cbAbort     = "wd_abort"
)

func formatWithdrawal(w *models.WithdrawalRequest) string {
	return fmt.Sprintf(
		"🆔 #%d `%s` (priority %d)\n👤 User: %d\n💰 Amount: %s (fee %s, pay out %s)\n🏦 %s %s, %s\n⏳ Expires: %s\n",
		w.ID, w.RequestCode, w.Priority,
		w.UserID,
		w.Amount.String(), w.Fee.String(), w.NetAmount.String(),
		escape(w.BankName), escape(utils.MaskAccountNumber(w.BankAccountNumber)), escape(w.BankAccountName),
		w.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"),
	)
}

func (b *Bot) sendPendingPage(ctx context.Context, chatID int64, page int) {
	list, err := b.withdrawals.ListForReview(ctx, models.WithdrawalPending, models.Page{Number: page, Size: reviewPageSize})
	if err != nil {
		b.logger.Errorf("Failed to get pending withdrawals: %v", err)
		b.sendMessage(chatID, "❌ Failed to load pending withdrawals.", nil)
		return
	}
	if len(list.Items) == 0 && page > 0 {
		b.sendPendingPage(ctx, chatID, 0)
		return
	}
	if len(list.Items) == 0 {
		b.sendMessage(chatID, "ℹ️ No pending withdrawal requests.", reviewMenu())
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Pending withdrawals (page %d of %d, %d total):\n\n", page+1, list.TotalPages(), list.Total))
	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list.Items)+1)
	for i := range list.Items {
		w := &list.Items[i]
		sb.WriteString(formatWithdrawal(w))
		sb.WriteString("\n")
		keyboardRows = append(keyboardRows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ Approve #%d", w.ID), cbApprove+strconv.FormatUint(w.ID, 10)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("❌ Reject #%d", w.ID), cbReject+strconv.FormatUint(w.ID, 10)),
		))
	}

	paginationRow := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	if page > 0 {
		paginationRow = append(paginationRow, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbPage+strconv.Itoa(page-1)))
	}
	if page+1 < list.TotalPages() {
		paginationRow = append(paginationRow, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", cbPage+strconv.Itoa(page+1)))
	}
	if len(paginationRow) > 0 {
		keyboardRows = append(keyboardRows, paginationRow)
	}
	b.sendMessage(chatID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(keyboardRows...))
}

func parseID(data, prefix string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimPrefix(data, prefix), 10, 64)
	return id, err == nil && id > 0
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.Message.Chat == nil || callback.From == nil || !b.isAdminChat(callback.Message.Chat.ID) {
		b.answerCallback(callback.ID, "Only reviewers can do this.")
		return
	}
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	data := callback.Data

	switch {
	case strings.HasPrefix(data, cbPage):
		page, err := strconv.Atoi(strings.TrimPrefix(data, cbPage))
		if err != nil || page < 0 {
			b.logger.Errorf("Invalid page number in callback: %s", data)
			b.answerCallback(callback.ID, "")
			return
		}
		b.sendPendingPage(ctx, chatID, page)
		b.answerCallback(callback.ID, "")

	case strings.HasPrefix(data, cbApproveOK):
		id, ok := parseID(data, cbApproveOK)
		if !ok {
			b.answerCallback(callback.ID, "Invalid button.")
			return
		}
		r, err := b.withdrawals.Approve(ctx, id, callback.From.ID, "")
		if err != nil {
			b.answerCallback(callback.ID, "")
			b.editMessage(chatID, messageID, b.reviewError(id, err), nil)
			return
		}
		b.editMessage(chatID, messageID, fmt.Sprintf(
			"✅ Withdrawal #%d approved.\nTransfer %s to %s %s.",
			r.ID, r.NetAmount.String(), escape(r.BankName), escape(utils.MaskAccountNumber(r.BankAccountNumber)),
		), nil)
		b.answerCallback(callback.ID, "Approved")

	case strings.HasPrefix(data, cbApprove):
		id, ok := parseID(data, cbApprove)
		if !ok {
			b.answerCallback(callback.ID, "Invalid button.")
			return
		}
		r, err := b.withdrawals.GetForReview(ctx, id)
		if err != nil {
			b.answerCallback(callback.ID, "")
			b.sendMessage(chatID, b.reviewError(id, err), nil)
			return
		}
		if r.Status != models.WithdrawalPending {
			b.answerCallback(callback.ID, fmt.Sprintf("Request #%d is already %s.", id, r.Status))
			return
		}
		confirm := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Yes, approve", cbApproveOK+strconv.FormatUint(id, 10)),
				tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbAbort),
			),
		)
		b.editMessage(chatID, messageID, "Approve this withdrawal? The ledger debit cannot be undone.\n\n"+formatWithdrawal(r), &confirm)
		b.answerCallback(callback.ID, "")

	case strings.HasPrefix(data, cbReject):
		id, ok := parseID(data, cbReject)
		if !ok {
			b.answerCallback(callback.ID, "Invalid button.")
			return
		}
		b.setState(callback.From.ID, stateAwaitingRejectReason)
		b.setUserActionData(callback.From.ID, id)
		b.sendMessage(chatID, fmt.Sprintf("Send the reason for rejecting #%d, or /cancel.", id), tgbotapi.ForceReply{ForceReply: true, Selective: true})
		b.answerCallback(callback.ID, "")

	case data == cbAbort:
		b.editMessage(chatID, messageID, "Action cancelled.", nil)
		b.answerCallback(callback.ID, "")

	default:
		b.logger.Warnf("Unknown callback data: %s", data)
		b.answerCallback(callback.ID, "")
	}
}

func (b *Bot) editMessage(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = markup
	if _, err := b.API.Send(edit); err != nil {
		b.logger.Errorf("Failed to edit message %d: %v", messageID, err)
	}
}

// reviewError turns a workflow error into a reply for the reviewer.
func (b *Bot) reviewError(id uint64, err error) string {
	var tErr *models.TransitionError
	switch {
	case errors.As(err, &tErr):
		return fmt.Sprintf("⚠️ Request #%d is already %s.", id, tErr.Current)
	case errors.Is(err, models.ErrNotFound):
		return fmt.Sprintf("⚠️ Request #%d not found.", id)
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrInsufficientBalance):
		return "⚠️ " + escape(err.Error())
	}
	b.logger.Errorf("Review of withdrawal %d failed: %v", id, err)
	return fmt.Sprintf("❌ Failed to process request #%d, see the logs.", id)
}
