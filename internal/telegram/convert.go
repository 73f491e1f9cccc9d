package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/graffic/soup/internal/quotes"
)

// ToUser converts a Telegram user to the archive's user record
func ToUser(u *models.User) *quotes.User {
	if u == nil {
		return nil
	}
	return &quotes.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}

// ToChat converts a Telegram chat to the archive's chat record.
// Private chats are titled after the user.
func ToChat(c *models.Chat) *quotes.Chat {
	title := c.Title
	if title == "" {
		title = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	return &quotes.Chat{
		ID:       c.ID,
		Type:     quotes.ChatType(c.Type),
		Title:    title,
		Username: c.Username,
	}
}

// IsPrivate reports whether the chat is a direct conversation with a user
func IsPrivate(c *models.Chat) bool {
	return c.Type == models.ChatTypePrivate
}
