package bot

import (
	"context"
	"fmt"

	"github.com/Fi44er/wallet_ledger/internal/service"
	"github.com/Fi44er/wallet_ledger/utils"
)

var _ service.Notifier = (*Notifier)(nil)

// Notifier delivers review queue messages to the admin chat and everything
// else to the user's private chat, whose ID is the user ID.
type Notifier struct {
	api         API
	adminChatID int64
	logger      *utils.Logger
}

func NewNotifier(api API, adminChatID int64, logger *utils.Logger) *Notifier {
	return &Notifier{api: api, adminChatID: adminChatID, logger: logger}
}

func (n *Notifier) Notify(_ context.Context, userID int64, subject, body string, category service.Category) error {
	chatID := userID
	if category == service.CategoryReview {
		if n.adminChatID == 0 {
			n.logger.Debugf("No admin chat configured, dropping %q", subject)
			return nil
		}
		chatID = n.adminChatID
	}
	text := fmt.Sprintf("*%s*\n\n%s", escape(subject), escape(body))
	if err := sendMarkdown(n.api, chatID, text, nil); err != nil {
		return fmt.Errorf("failed to notify chat %d: %w", chatID, err)
	}
	return nil
}
