package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the repository of users, chats and quotes
type Store struct {
	db *gorm.DB
}

// NewStore creates a new quote store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// NewQuote holds the fields needed to archive a message
type NewQuote struct {
	ChatID      int64
	MessageID   int64
	IsForward   bool
	SentAt      time.Time
	SentByID    int64
	QuotedByID  int64
	Content     string
	ContentHTML string
	MessageType MessageType
	FileID      string
	Source      datatypes.JSON
}

// AddQuote archives a message unless a quote with the same sent_at, sender
// and content already exists in any chat. A deleted duplicate is never
// resurrected: the status is QuotePreviouslyDeleted and the quote is nil.
func (s *Store) AddQuote(ctx context.Context, nq NewQuote) (*Quote, AddQuoteStatus, error) {
	if nq.SentByID == nq.QuotedByID {
		return nil, QuoteAdded, ErrSelfQuote
	}

	quote := Quote{
		ChatID:      nq.ChatID,
		MessageID:   nq.MessageID,
		IsForward:   nq.IsForward,
		SentAt:      normalizeTime(nq.SentAt),
		SentByID:    nq.SentByID,
		QuotedByID:  nq.QuotedByID,
		Content:     nq.Content,
		ContentHTML: nq.ContentHTML,
		MessageType: nq.MessageType,
		FileID:      nq.FileID,
		Source:      nq.Source,
	}
	if quote.MessageType == "" {
		quote.MessageType = MessageText
	}

	var existing *Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := findDuplicate(tx, &quote)
		if err != nil {
			return err
		}
		if found != nil {
			existing = found
			return nil
		}
		return tx.Omit(clause.Associations).Create(&quote).Error
	})

	switch {
	case err == nil:
	case isUniqueViolation(err):
		// A concurrent insert won the race; report what it stored.
		existing, err = findDuplicate(s.db.WithContext(ctx), &quote)
		if err != nil {
			return nil, QuoteAdded, err
		}
		if existing == nil {
			return nil, QuoteAdded, fmt.Errorf("failed to resolve duplicate quote after conflict")
		}
	case isCheckViolation(err, "quotes_not_self_check"):
		return nil, QuoteAdded, ErrSelfQuote
	default:
		return nil, QuoteAdded, fmt.Errorf("failed to add quote: %w", err)
	}

	if existing == nil {
		return &quote, QuoteAdded, nil
	}
	if existing.Deleted {
		return nil, QuotePreviouslyDeleted, nil
	}
	return existing, QuoteAlreadyExists, nil
}

// findDuplicate looks the quote up by its dedup key, then by the archived
// message itself
func findDuplicate(db *gorm.DB, q *Quote) (*Quote, error) {
	found, err := firstQuote(db.Where("sent_at = ? AND sent_by_id = ? AND content_html = ?",
		q.SentAt, q.SentByID, q.ContentHTML))
	if err != nil || found != nil {
		return found, err
	}
	return firstQuote(db.Where("chat_id = ? AND message_id = ?", q.ChatID, q.MessageID))
}

// firstQuote runs the query and maps not-found to nil
func firstQuote(db *gorm.DB) (*Quote, error) {
	var quote Quote
	err := db.First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find quote: %w", err)
	}
	return &quote, nil
}

// DeleteQuote soft-deletes a quote. Deleting it again is a no-op.
func (s *Store) DeleteQuote(ctx context.Context, id int64) error {
	return softDelete(s.db.WithContext(ctx), id)
}

func softDelete(db *gorm.DB, id int64) error {
	if err := db.Model(&Quote{}).
		Where("id = ? AND NOT deleted", id).
		Update("deleted", true).Error; err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	return nil
}

// GetQuote returns a quote with its author, deleted or not
func (s *Store) GetQuote(ctx context.Context, id int64) (*Quote, error) {
	return firstQuote(s.db.WithContext(ctx).Preload("SentBy").Where("id = ?", id))
}

// GetQuoteByMessage returns the quote archived from a chat message
func (s *Store) GetQuoteByMessage(ctx context.Context, chatID, messageID int64) (*Quote, error) {
	return firstQuote(s.db.WithContext(ctx).
		Preload("SentBy").
		Where("chat_id = ? AND message_id = ?", chatID, messageID))
}

// QuoteCount returns the number of live quotes in a chat
func (s *Store) QuoteCount(ctx context.Context, chatID int64) (int64, error) {
	var count int64
	if err := liveQuotes(s.db.WithContext(ctx), chatID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count quotes: %w", err)
	}
	return count, nil
}

// CountMatching counts the live quotes of a chat whose content contains term
// and, separately, those whose author's name or username contains it
func (s *Store) CountMatching(ctx context.Context, chatID int64, term string) (byContent, byAuthor int64, err error) {
	db := s.db.WithContext(ctx)
	pattern := likePattern(term)

	if err := liveQuotes(db, chatID).
		Where("content ILIKE ?", pattern).
		Count(&byContent).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count quotes by content: %w", err)
	}

	if err := liveQuotes(db, chatID).
		Where(sentByAnySQL, pattern, pattern).
		Count(&byAuthor).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count quotes by author: %w", err)
	}

	return byContent, byAuthor, nil
}

// FirstQuote returns the earliest live quote of a chat, nil when there is none
func (s *Store) FirstQuote(ctx context.Context, chatID int64) (*Quote, error) {
	return firstQuote(liveQuotes(s.db.WithContext(ctx), chatID).
		Preload("SentBy").
		Order("sent_at ASC, id ASC"))
}

// LastQuote returns the latest live quote of a chat, nil when there is none
func (s *Store) LastQuote(ctx context.Context, chatID int64) (*Quote, error) {
	return firstQuote(liveQuotes(s.db.WithContext(ctx), chatID).
		Preload("SentBy").
		Order("sent_at DESC, id DESC"))
}

// AddQuoteMessage records that a bot message displays a quote.
// Recording the same message again is a no-op.
func (s *Store) AddQuoteMessage(ctx context.Context, chatID, messageID, quoteID int64) error {
	qm := QuoteMessage{ChatID: chatID, MessageID: messageID, QuoteID: quoteID}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&qm).Error; err != nil {
		return fmt.Errorf("failed to add quote message: %w", err)
	}
	return nil
}

// QuoteIDFromMessage resolves the quote shown by a bot message. The second
// return value is false when the message shows no quote.
func (s *Store) QuoteIDFromMessage(ctx context.Context, chatID, messageID int64) (int64, bool, error) {
	var qm QuoteMessage
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		First(&qm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get quote message: %w", err)
	}
	return qm.QuoteID, true, nil
}

// GetQuoteMessages lists every bot message displaying a quote
func (s *Store) GetQuoteMessages(ctx context.Context, quoteID int64) ([]QuoteMessage, error) {
	var messages []QuoteMessage
	if err := s.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("id").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get quote messages: %w", err)
	}
	return messages, nil
}

// liveQuotes scopes a query to the non-deleted quotes of a chat
func liveQuotes(db *gorm.DB, chatID int64) *gorm.DB {
	return db.Model(&Quote{}).Where("quotes.chat_id = ? AND NOT quotes.deleted", chatID)
}

// normalizeTime matches the precision Postgres stores
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
