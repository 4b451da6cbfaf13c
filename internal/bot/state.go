package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	stateDefault              = ""
	stateAwaitingRejectReason = "awaiting_reject_reason"
)

func sendMarkdown(api API, chatID int64, text string, replyMarkup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if replyMarkup != nil {
		msg.ReplyMarkup = replyMarkup
	}
	_, err := api.Send(msg)
	return err
}

func (b *Bot) sendMessage(chatID int64, text string, replyMarkup interface{}) {
	if err := sendMarkdown(b.API, chatID, text, replyMarkup); err != nil {
		b.logger.Errorf("Failed to send message: %v", err)
	}
}

func (b *Bot) answerCallback(callbackID string, text string) {
	if _, err := b.API.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Errorf("Failed to answer callback: %v", err)
	}
}

func (b *Bot) isAdminChat(chatID int64) bool {
	return b.adminChatID != 0 && chatID == b.adminChatID
}

func escape(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

func (b *Bot) setState(userID int64, state string) {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	if state == stateDefault {
		delete(b.userStates, userID)
		delete(b.userActionData, userID)
	} else {
		b.userStates[userID] = state
	}
	b.logger.Debugf("Set state for user %d: %s", userID, state)
}

func (b *Bot) getUserState(userID int64) string {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	return b.userStates[userID]
}

func (b *Bot) setUserActionData(userID int64, withdrawalID uint64) {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	b.userActionData[userID] = withdrawalID
}

func (b *Bot) getUserActionData(userID int64) uint64 {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()
	return b.userActionData[userID]
}
