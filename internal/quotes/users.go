package quotes

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertUser inserts a user or overwrites every field of the stored one
func (s *Store) UpsertUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "username"}),
		}).
		Create(user).Error; err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}
	return nil
}

// UpsertChat inserts a chat or overwrites every field of the stored one
func (s *Store) UpsertChat(ctx context.Context, chat *Chat) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "title", "username"}),
		}).
		Create(chat).Error; err != nil {
		return fmt.Errorf("failed to upsert chat %d: %w", chat.ID, err)
	}
	return nil
}

// GetUser returns a user, nil when unknown
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetChat returns a chat, nil when unknown
func (s *Store) GetChat(ctx context.Context, id int64) (*Chat, error) {
	return getChat(s.db.WithContext(ctx), id)
}

func getChat(db *gorm.DB, id int64) (*Chat, error) {
	var chat Chat
	err := db.Where("id = ?", id).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

// AddMembership records that a user belongs to a chat. Duplicates are ignored.
func (s *Store) AddMembership(ctx context.Context, userID, chatID int64) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Membership{UserID: userID, ChatID: chatID}).Error; err != nil {
		return fmt.Errorf("failed to add membership: %w", err)
	}
	return nil
}

// RemoveMembership forgets that a user belongs to a chat. Absent pairs are ignored.
func (s *Store) RemoveMembership(ctx context.Context, userID, chatID int64) error {
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Delete(&Membership{}).Error; err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	return nil
}

// UserChats lists the group chats a user is a member of, by title
func (s *Store) UserChats(ctx context.Context, userID int64) ([]Chat, error) {
	var chats []Chat
	if err := s.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.chat_id = chats.id").
		Where("memberships.user_id = ? AND chats.type <> ?", userID, ChatPrivate).
		Order("chats.title, chats.id").
		Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to list user chats: %w", err)
	}
	return chats, nil
}

// ChatMembers lists the users seen in a chat
func (s *Store) ChatMembers(ctx context.Context, chatID int64) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.user_id = users.id").
		Where("memberships.chat_id = ?", chatID).
		Order("users.id").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list chat members: %w", err)
	}
	return users, nil
}

// MigrateChat re-keys a chat from oldID to newID, moving its quotes, quote
// messages and memberships along. newID must not exist yet.
func (s *Store) MigrateChat(ctx context.Context, oldID, newID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := getChat(tx, newID)
		if err != nil {
			return err
		}
		if target != nil {
			return ErrPriorChatExists
		}

		chat, err := getChat(tx.Clauses(clause.Locking{Strength: "UPDATE"}), oldID)
		if err != nil {
			return err
		}
		if chat == nil {
			return ErrChatNotFound
		}

		moved := *chat
		moved.ID = newID
		if err := tx.Create(&moved).Error; err != nil {
			return err
		}

		for _, model := range []any{&Quote{}, &QuoteMessage{}} {
			if err := tx.Model(model).
				Where("chat_id = ?", oldID).
				Update("chat_id", newID).Error; err != nil {
				return err
			}
		}

		// Memberships are part of the primary key, so copy then drop.
		if err := tx.Exec(
			"INSERT INTO memberships (user_id, chat_id) SELECT user_id, ? FROM memberships WHERE chat_id = ? ON CONFLICT DO NOTHING",
			newID, oldID,
		).Error; err != nil {
			return err
		}

		return tx.Delete(&Chat{}, "id = ?", oldID).Error
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPriorChatExists), errors.Is(err, ErrChatNotFound):
		return err
	case isUniqueViolation(err):
		return ErrPriorChatExists
	default:
		return fmt.Errorf("failed to migrate chat %d to %d: %w", oldID, newID, err)
	}
}
