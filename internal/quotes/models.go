package quotes

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ChatType is the kind of chat as reported by Telegram
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// MessageType is the kind of content a quote archives
type MessageType string

const (
	MessageText  MessageType = "text"
	MessagePhoto MessageType = "photo"
)

// User is a Telegram user observed by the bot. Optional fields are stored as
// empty strings.
type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	FirstName string `gorm:"not null" json:"first_name"`
	LastName  string `gorm:"not null" json:"last_name,omitempty"`
	Username  string `gorm:"not null" json:"username,omitempty"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// FullName is the first name followed by the last name when there is one
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// DisplayName prefers the full name and falls back to @username
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName()); name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "Unknown"
}

// Chat is a Telegram chat the bot has seen
type Chat struct {
	ID       int64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Type     ChatType `gorm:"not null" json:"type"`
	Title    string   `gorm:"not null" json:"title,omitempty"`
	Username string   `gorm:"not null" json:"username,omitempty"`
}

// TableName specifies the table name for Chat
func (Chat) TableName() string {
	return "chats"
}

// Membership links a user to a chat they were seen in
type Membership struct {
	UserID int64 `gorm:"primaryKey;autoIncrement:false"`
	ChatID int64 `gorm:"primaryKey;autoIncrement:false"`
}

// TableName specifies the table name for Membership
func (Membership) TableName() string {
	return "memberships"
}

// Quote is an archived chat message. SentAt is when the original message was
// sent, CreatedAt when it was archived.
type Quote struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	ChatID      int64          `gorm:"not null" json:"chat_id"`
	MessageID   int64          `gorm:"not null" json:"message_id"`
	IsForward   bool           `gorm:"not null" json:"is_forward"`
	SentAt      time.Time      `gorm:"not null" json:"sent_at"`
	SentByID    int64          `gorm:"not null" json:"sent_by_id"`
	QuotedByID  int64          `gorm:"not null" json:"quoted_by_id"`
	Content     string         `gorm:"not null" json:"content"`
	ContentHTML string         `gorm:"column:content_html;not null" json:"content_html"`
	MessageType MessageType    `gorm:"not null" json:"message_type"`
	FileID      string         `gorm:"not null" json:"file_id,omitempty"`
	Source      datatypes.JSON `gorm:"type:jsonb" json:"source,omitempty"` // raw Telegram message
	Deleted     bool           `gorm:"not null" json:"deleted"`
	Score       int            `gorm:"not null" json:"score"`
	CreatedAt   time.Time      `json:"created_at"`

	SentBy   *User `gorm:"foreignKey:SentByID" json:"sent_by,omitempty"`
	QuotedBy *User `gorm:"foreignKey:QuotedByID" json:"quoted_by,omitempty"`
}

// TableName specifies the table name for Quote
func (Quote) TableName() string {
	return "quotes"
}

// QuoteMessage records a bot message that displays a quote
type QuoteMessage struct {
	ID        int64 `gorm:"primaryKey"`
	ChatID    int64 `gorm:"not null"`
	MessageID int64 `gorm:"not null"`
	QuoteID   int64 `gorm:"not null"`
}

// TableName specifies the table name for QuoteMessage
func (QuoteMessage) TableName() string {
	return "quote_messages"
}

// Vote is one user's standing vote on a quote. Direction 0 is a retracted vote.
type Vote struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"not null"`
	QuoteID   int64     `gorm:"not null"`
	Direction Direction `gorm:"not null"`
}

// TableName specifies the table name for Vote
func (Vote) TableName() string {
	return "votes"
}
