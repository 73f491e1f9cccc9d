package quotes

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultDeleteThreshold is the score at or below which a quote is deleted
const DefaultDeleteThreshold = -5

// Direction is a vote: up, down or retracted
type Direction int

const (
	Downvote Direction = -1
	NoVote   Direction = 0
	Upvote   Direction = 1
)

// Valid reports whether d is one of the three vote directions
func (d Direction) Valid() bool {
	return d >= Downvote && d <= Upvote
}

// Tally is the vote count of one quote or of several quotes summed
type Tally struct {
	Up    int `gorm:"column:up"`
	Score int `gorm:"column:score"`
	Down  int `gorm:"column:down"`
}

// IsZero reports whether nobody voted
func (t Tally) IsZero() bool {
	return t == Tally{}
}

const tallySelect = "COALESCE(SUM(CASE WHEN votes.direction = 1 THEN 1 ELSE 0 END), 0) AS up, " +
	"COALESCE(SUM(votes.direction), 0) AS score, " +
	"COALESCE(SUM(CASE WHEN votes.direction = -1 THEN 1 ELSE 0 END), 0) AS down"

// Scorer runs the vote state machine and the score-driven deletion
type Scorer struct {
	db        *gorm.DB
	threshold int
}

// NewScorer creates a scorer deleting quotes at DefaultDeleteThreshold
func NewScorer(db *gorm.DB) *Scorer {
	return NewScorerWithThreshold(db, DefaultDeleteThreshold)
}

// NewScorerWithThreshold creates a scorer deleting quotes whose score drops
// to threshold or below
func NewScorerWithThreshold(db *gorm.DB, threshold int) *Scorer {
	return &Scorer{db: db, threshold: threshold}
}

// Threshold returns the deletion threshold
func (s *Scorer) Threshold() int {
	return s.threshold
}

// AddVote sets the user's vote on a quote. Repeating a nonzero vote changes
// nothing and reports AlreadyVoted. Otherwise the vote is stored, the score
// is recomputed from every vote and the quote is deleted when the score is
// at or below the threshold.
func (s *Scorer) AddVote(ctx context.Context, userID, quoteID int64, direction Direction) (VoteStatus, error) {
	if !direction.Valid() {
		return VoteAdded, ErrInvalidDirection
	}

	status := VoteAdded
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Votes on the same quote serialize on its row.
		var quote Quote
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", quoteID).
			First(&quote).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuoteNotFound
		}
		if err != nil {
			return err
		}

		current, err := userVote(tx, userID, quoteID)
		if err != nil {
			return err
		}
		if current != nil && current.Direction == direction && direction != NoVote {
			status = AlreadyVoted
			return nil
		}

		if current == nil {
			if err := tx.Create(&Vote{UserID: userID, QuoteID: quoteID, Direction: direction}).Error; err != nil {
				return err
			}
		} else if err := tx.Model(current).Update("direction", direction).Error; err != nil {
			return err
		}

		tally, err := quoteTally(tx, quoteID)
		if err != nil {
			return err
		}
		if err := tx.Model(&quote).Update("score", tally.Score).Error; err != nil {
			return err
		}

		if tally.Score <= s.threshold {
			status = QuoteDeleted
			return softDelete(tx, quoteID)
		}
		return nil
	})

	switch {
	case err == nil:
		return status, nil
	case errors.Is(err, ErrQuoteNotFound):
		return VoteAdded, err
	default:
		return VoteAdded, fmt.Errorf("failed to add vote: %w", err)
	}
}

// UserVote returns the user's vote on a quote, nil when they never voted
func (s *Scorer) UserVote(ctx context.Context, userID, quoteID int64) (*Vote, error) {
	vote, err := userVote(s.db.WithContext(ctx), userID, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return vote, nil
}

func userVote(db *gorm.DB, userID, quoteID int64) (*Vote, error) {
	var vote Vote
	err := db.Where("user_id = ? AND quote_id = ?", userID, quoteID).First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// GetVotesByID counts the votes of a quote
func (s *Scorer) GetVotesByID(ctx context.Context, quoteID int64) (Tally, error) {
	tally, err := quoteTally(s.db.WithContext(ctx), quoteID)
	if err != nil {
		return Tally{}, fmt.Errorf("failed to count votes: %w", err)
	}
	return tally, nil
}

// GetVotes counts the votes of the quote shown by a bot message. The tally
// is zero when the message shows no quote.
func (s *Scorer) GetVotes(ctx context.Context, chatID, messageID int64) (Tally, error) {
	var tally Tally
	if err := s.db.WithContext(ctx).
		Table("votes").
		Select(tallySelect).
		Joins("JOIN quote_messages ON quote_messages.quote_id = votes.quote_id").
		Where("quote_messages.chat_id = ? AND quote_messages.message_id = ?", chatID, messageID).
		Scan(&tally).Error; err != nil {
		return Tally{}, fmt.Errorf("failed to count votes: %w", err)
	}
	return tally, nil
}

// UserTally sums the votes over a user's live quotes in a chat
func (s *Scorer) UserTally(ctx context.Context, chatID, userID int64) (Tally, error) {
	var tally Tally
	if err := s.db.WithContext(ctx).
		Table("votes").
		Select(tallySelect).
		Joins("JOIN quotes ON quotes.id = votes.quote_id").
		Where("quotes.chat_id = ? AND quotes.sent_by_id = ? AND NOT quotes.deleted", chatID, userID).
		Scan(&tally).Error; err != nil {
		return Tally{}, fmt.Errorf("failed to sum votes of user %d: %w", userID, err)
	}
	return tally, nil
}

func quoteTally(db *gorm.DB, quoteID int64) (Tally, error) {
	var tally Tally
	err := db.Table("votes").
		Select(tallySelect).
		Where("votes.quote_id = ?", quoteID).
		Scan(&tally).Error
	return tally, err
}
