// Package middleware provides bot middleware for filtering and processing updates.
package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// ChatFilter creates a middleware that filters updates based on allowed chat IDs.
// If allowedChatIDs is empty, all chats are allowed. Private chats always pass
// so members can browse their groups from direct messages.
// If autoLeave is true, the bot will attempt to leave unauthorized chats.
func ChatFilter(allowedChatIDs []int64, autoLeave bool, logger *slog.Logger) bot.Middleware {
	// Build lookup map for O(1) checking
	allowed := make(map[int64]bool, len(allowedChatIDs))
	for _, id := range allowedChatIDs {
		allowed[id] = true
	}
	allowAll := len(allowedChatIDs) == 0

	logger.Info("Chat filter", "allowAll", allowAll, "autoLeave", autoLeave, "chatIds", allowedChatIDs)

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			chat := extractChat(update)
			if chat == nil {
				return
			}
			chatID := chat.ID

			if !allowAll && chat.Type != models.ChatTypePrivate && !allowed[chatID] {
				logger.Info("ignoring update from unauthorized chat", "chat_id", chatID)

				// Attempt to leave the chat if autoLeave is enabled
				if autoLeave && b != nil {
					logger.Info("leaving unauthorized chat", "chat_id", chatID)
					_, err := b.LeaveChat(ctx, &bot.LeaveChatParams{ChatID: chatID})
					if err != nil {
						logger.Error("failed to leave chat", "chat_id", chatID, "error", err)
					}
				}

				return
			}

			next(ctx, b, update)
		}
	}
}

// extractChat returns the chat an update belongs to, nil when there is none
func extractChat(update *models.Update) *models.Chat {
	if update == nil {
		return nil
	}

	switch {
	case update.Message != nil:
		return &update.Message.Chat
	case update.EditedMessage != nil:
		return &update.EditedMessage.Chat
	case update.ChannelPost != nil:
		return &update.ChannelPost.Chat
	case update.EditedChannelPost != nil:
		return &update.EditedChannelPost.Chat
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		return &update.CallbackQuery.Message.Message.Chat
	case update.MyChatMember != nil:
		return &update.MyChatMember.Chat
	case update.ChatMember != nil:
		return &update.ChatMember.Chat
	case update.ChatJoinRequest != nil:
		return &update.ChatJoinRequest.Chat
	case update.MessageReaction != nil:
		return &update.MessageReaction.Chat
	default:
		return nil
	}
}
