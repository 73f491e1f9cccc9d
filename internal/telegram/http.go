package telegram

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// BotMessenger implements Messenger over go-telegram/bot
type BotMessenger struct {
	bot *bot.Bot
}

// NewBotMessenger wraps a go-telegram/bot client
func NewBotMessenger(b *bot.Bot) *BotMessenger {
	return &BotMessenger{bot: b}
}

// Send implements the Messenger interface
func (m *BotMessenger) Send(ctx context.Context, chatID int64, text string, opts *SendOptions) (int64, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if opts != nil {
		params.ReplyParameters = replyParameters(opts.ReplyTo)
		params.ReplyMarkup = replyMarkup(opts)
	}

	msg, err := m.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return int64(msg.ID), nil
}

// SendPhoto implements the Messenger interface
func (m *BotMessenger) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, opts *SendOptions) (int64, error) {
	params := &bot.SendPhotoParams{
		ChatID:    chatID,
		Photo:     &models.InputFileString{Data: fileID},
		Caption:   caption,
		ParseMode: models.ParseModeHTML,
	}
	if opts != nil {
		params.ReplyParameters = replyParameters(opts.ReplyTo)
		params.ReplyMarkup = replyMarkup(opts)
	}

	msg, err := m.bot.SendPhoto(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to send photo to %d: %w", chatID, err)
	}
	return int64(msg.ID), nil
}

// EditText implements the Messenger interface
func (m *BotMessenger) EditText(ctx context.Context, chatID, messageID int64, text string) error {
	_, err := m.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: int(messageID),
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to edit message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// EditCaption implements the Messenger interface
func (m *BotMessenger) EditCaption(ctx context.Context, chatID, messageID int64, caption string) error {
	_, err := m.bot.EditMessageCaption(ctx, &bot.EditMessageCaptionParams{
		ChatID:    chatID,
		MessageID: int(messageID),
		Caption:   caption,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to edit caption %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// EditButtons implements the Messenger interface
func (m *BotMessenger) EditButtons(ctx context.Context, chatID, messageID int64, buttons []Button) error {
	_, err := m.bot.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   int(messageID),
		ReplyMarkup: inlineKeyboard(buttons),
	})
	if err != nil {
		return fmt.Errorf("failed to edit buttons of %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// AnswerCallback implements the Messenger interface
func (m *BotMessenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := m.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// SetCommands publishes the command list shown by Telegram clients
func (m *BotMessenger) SetCommands(ctx context.Context, commands map[string]string) error {
	list := make([]models.BotCommand, 0, len(commands))
	for name, description := range commands {
		list = append(list, models.BotCommand{Command: name, Description: description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Command < list[j].Command })

	if _, err := m.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: list}); err != nil {
		return fmt.Errorf("failed to set commands: %w", err)
	}
	return nil
}

func replyParameters(messageID int64) *models.ReplyParameters {
	if messageID == 0 {
		return nil
	}
	return &models.ReplyParameters{
		MessageID:                int(messageID),
		AllowSendingWithoutReply: true,
	}
}

func replyMarkup(opts *SendOptions) models.ReplyMarkup {
	switch {
	case len(opts.Buttons) > 0:
		return inlineKeyboard(opts.Buttons)
	case len(opts.Keyboard) > 0:
		rows := make([][]models.KeyboardButton, 0, len(opts.Keyboard))
		for _, row := range opts.Keyboard {
			buttons := make([]models.KeyboardButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, models.KeyboardButton{Text: text})
			}
			rows = append(rows, buttons)
		}
		return &models.ReplyKeyboardMarkup{
			Keyboard:        rows,
			OneTimeKeyboard: true,
			ResizeKeyboard:  true,
		}
	case opts.RemoveKeyboard:
		return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
	default:
		return nil
	}
}

func inlineKeyboard(buttons []Button) *models.InlineKeyboardMarkup {
	row := make([]models.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{row}}
}

var _ Messenger = (*BotMessenger)(nil)
