package telegram

import (
	"context"
)

// Messenger is the outbound side of the bot. Text is Telegram HTML.
type Messenger interface {
	// Send posts a message and returns its id
	Send(ctx context.Context, chatID int64, text string, opts *SendOptions) (int64, error)

	// SendPhoto posts a photo by file id and returns the message id
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, opts *SendOptions) (int64, error)

	// EditText replaces the text of a message and drops its buttons
	EditText(ctx context.Context, chatID, messageID int64, text string) error

	// EditCaption replaces the caption of a media message and drops its buttons
	EditCaption(ctx context.Context, chatID, messageID int64, caption string) error

	// EditButtons replaces the inline buttons of a message
	EditButtons(ctx context.Context, chatID, messageID int64, buttons []Button) error

	// AnswerCallback acknowledges a button press with a short notice
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Button is an inline button carrying callback data
type Button struct {
	Text string
	Data string
}

// SendOptions holds the optional parts of an outgoing message
type SendOptions struct {
	ReplyTo        int64      // message to reply to, 0 for none
	Buttons        []Button   // a single row of inline buttons
	Keyboard       [][]string // one-time reply keyboard
	RemoveKeyboard bool
}
