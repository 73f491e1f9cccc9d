package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/graffic/soup/internal/telegram"
)

// Dispatcher routes incoming updates to commands, the chat selection
// prompt and vote buttons
type Dispatcher struct {
	registry *Registry
	handlers *Handlers
	logger   *slog.Logger
}

// NewDispatcher creates a new update dispatcher
func NewDispatcher(registry *Registry, handlers *Handlers, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		handlers: handlers,
		logger:   logger,
	}
}

// HandleUpdate processes one update. It matches bot.HandlerFunc.
func (d *Dispatcher) HandleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := d.handlers.Vote(ctx, update.CallbackQuery); err != nil {
			d.logger.Error("vote failed", "user_id", update.CallbackQuery.From.ID, "error", err)
		}
	case update.Message != nil:
		if err := d.handleMessage(ctx, update.Message); err != nil {
			d.logger.Error("message handling failed", "chat_id", update.Message.Chat.ID, "error", err)
		}
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *models.Message) error {
	if msg.From == nil {
		return nil
	}
	direct := telegram.IsPrivate(&msg.Chat)

	name, args, ok := extractCommand(msg.Text, d.handlers.botUsername)
	if !ok {
		if direct && msg.Text != "" && d.handlers.sessions.Selecting(msg.From.ID) {
			return d.handlers.SelectChat(ctx, msg)
		}
		return nil
	}

	cmd, scope, found := d.registry.Get(name)
	if !found {
		d.logger.Debug("unknown command", "command", name)
		return nil
	}

	switch {
	case scope == GroupOnly && direct, scope == DirectOnly && !direct:
		d.logger.Debug("command used out of scope", "command", name, "chat_id", msg.Chat.ID)
		return nil
	}

	req := &Request{Message: msg, Args: args, ChatID: msg.Chat.ID, Direct: direct}
	if direct && scope == Anywhere {
		choice, ok := d.handlers.sessions.Current(msg.From.ID)
		if !ok {
			return d.handlers.reply(ctx, msg, noChatSelected)
		}
		req.ChatID = choice.ChatID
	}

	d.logger.Info("executing command", "command", name, "chat_id", req.ChatID, "user_id", msg.From.ID)
	return cmd.Execute(ctx, req)
}

// extractCommand splits "/name@bot arg1 arg2" into its name and arguments.
// Commands addressed to another bot are not ours.
func extractCommand(text, botUsername string) (string, []string, bool) {
	if len(text) == 0 || text[0] != '/' {
		return "", nil, false
	}

	fields := strings.Fields(text)
	cmd := fields[0][1:]

	// Handle commands with bot username (e.g., /start@mybot)
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		target := cmd[i+1:]
		cmd = cmd[:i]
		if botUsername != "" && !strings.EqualFold(target, botUsername) {
			return "", nil, false
		}
	}
	if cmd == "" {
		return "", nil, false
	}

	return strings.ToLower(cmd), fields[1:], true
}
