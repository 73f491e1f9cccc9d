package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/graffic/soup/internal/quotes"
	"github.com/graffic/soup/internal/telegram"
)

// Recorder keeps the archive's users, chats and memberships in step with
// what the bot sees
type Recorder interface {
	UpsertUser(ctx context.Context, user *quotes.User) error
	UpsertChat(ctx context.Context, chat *quotes.Chat) error
	AddMembership(ctx context.Context, userID, chatID int64) error
	RemoveMembership(ctx context.Context, userID, chatID int64) error
	MigrateChat(ctx context.Context, oldID, newID int64) error
}

// Observe creates a middleware that records every message's sender and
// chat, membership changes and group to supergroup migrations before the
// update is handled
func Observe(recorder Recorder, logger *slog.Logger) bot.Middleware {
	o := &observer{recorder: recorder, logger: logger}

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if err := o.observe(ctx, update); err != nil {
				logger.Error("failed to record update", "update_id", update.ID, "error", err)
			}
			next(ctx, b, update)
		}
	}
}

type observer struct {
	recorder Recorder
	logger   *slog.Logger
}

func (o *observer) observe(ctx context.Context, update *models.Update) error {
	switch {
	case update.Message != nil:
		return o.message(ctx, update.Message)
	case update.CallbackQuery != nil:
		// Voters must exist before their vote
		return o.recorder.UpsertUser(ctx, telegram.ToUser(&update.CallbackQuery.From))
	}
	return nil
}

func (o *observer) message(ctx context.Context, msg *models.Message) error {
	switch {
	case msg.MigrateToChatID != 0:
		return o.migrate(ctx, msg.Chat.ID, msg.MigrateToChatID)
	case msg.MigrateFromChatID != 0:
		return o.migrate(ctx, msg.MigrateFromChatID, msg.Chat.ID)
	}

	if err := o.recorder.UpsertChat(ctx, telegram.ToChat(&msg.Chat)); err != nil {
		return err
	}
	private := telegram.IsPrivate(&msg.Chat)

	if msg.From != nil {
		if err := o.member(ctx, msg.From, msg.Chat.ID, private); err != nil {
			return err
		}
	}
	for i := range msg.NewChatMembers {
		if err := o.member(ctx, &msg.NewChatMembers[i], msg.Chat.ID, private); err != nil {
			return err
		}
	}

	if msg.LeftChatMember != nil {
		if err := o.recorder.RemoveMembership(ctx, msg.LeftChatMember.ID, msg.Chat.ID); err != nil {
			return err
		}
		o.logger.Debug("member left", "chat_id", msg.Chat.ID, "user_id", msg.LeftChatMember.ID)
	}
	return nil
}

func (o *observer) member(ctx context.Context, user *models.User, chatID int64, private bool) error {
	if err := o.recorder.UpsertUser(ctx, telegram.ToUser(user)); err != nil {
		return err
	}
	if private {
		return nil
	}
	return o.recorder.AddMembership(ctx, user.ID, chatID)
}

// migrate moves a group's archive to its supergroup. Telegram announces the
// move in both chats, so the second announcement finds it done.
func (o *observer) migrate(ctx context.Context, oldID, newID int64) error {
	err := o.recorder.MigrateChat(ctx, oldID, newID)
	switch {
	case errors.Is(err, quotes.ErrPriorChatExists), errors.Is(err, quotes.ErrChatNotFound):
		o.logger.Debug("chat migration skipped", "old_chat_id", oldID, "new_chat_id", newID, "reason", err)
		return nil
	case err != nil:
		return err
	}
	o.logger.Info("chat migrated", "old_chat_id", oldID, "new_chat_id", newID)
	return nil
}
