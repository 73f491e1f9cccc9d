package quotes

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// UserCount pairs a user with a number of quotes
type UserCount struct {
	User
	Count int64 `gorm:"column:quote_count"`
}

// UserScore pairs a user with the tally over their quotes
type UserScore struct {
	User  User
	Tally Tally
}

// Ranker answers the statistics queries of a chat. Order among ties is
// unspecified.
type Ranker struct {
	db     *gorm.DB
	store  *Store
	scorer *Scorer
}

// NewRanker creates a new ranker
func NewRanker(db *gorm.DB, scorer *Scorer) *Ranker {
	return &Ranker{db: db, store: NewStore(db), scorer: scorer}
}

// MostQuoted lists the authors with the most live quotes in the chat
func (r *Ranker) MostQuoted(ctx context.Context, chatID int64, limit int) ([]UserCount, error) {
	return r.countBy(ctx, chatID, "sent_by_id", limit)
}

// MostQuotesAdded lists the users who archived the most live quotes in the chat
func (r *Ranker) MostQuotesAdded(ctx context.Context, chatID int64, limit int) ([]UserCount, error) {
	return r.countBy(ctx, chatID, "quoted_by_id", limit)
}

// column is one of the two user references of a quote
func (r *Ranker) countBy(ctx context.Context, chatID int64, column string, limit int) ([]UserCount, error) {
	var counts []UserCount
	if err := r.db.WithContext(ctx).
		Table("quotes").
		Select("users.*, COUNT(quotes.id) AS quote_count").
		Joins("JOIN users ON users.id = quotes."+column).
		Where("quotes.chat_id = ? AND NOT quotes.deleted", chatID).
		Group("users.id").
		Order("quote_count DESC").
		Limit(limit).
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to rank users by %s: %w", column, err)
	}
	return counts, nil
}

// HighestScoring lists the chat members whose live quotes score the highest
func (r *Ranker) HighestScoring(ctx context.Context, chatID int64, limit int) ([]UserScore, error) {
	return r.scores(ctx, chatID, limit, func(a, b Tally) bool { return a.Score > b.Score })
}

// LowestScoring lists the chat members whose live quotes score the lowest
func (r *Ranker) LowestScoring(ctx context.Context, chatID int64, limit int) ([]UserScore, error) {
	return r.scores(ctx, chatID, limit, func(a, b Tally) bool { return a.Score < b.Score })
}

// scores tallies every member of the chat. Members without votes are left out.
func (r *Ranker) scores(ctx context.Context, chatID int64, limit int, less func(a, b Tally) bool) ([]UserScore, error) {
	members, err := r.store.ChatMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}

	scores := make([]UserScore, 0, len(members))
	for _, member := range members {
		tally, err := r.scorer.UserTally(ctx, chatID, member.ID)
		if err != nil {
			return nil, err
		}
		if tally.IsZero() {
			continue
		}
		scores = append(scores, UserScore{User: member, Tally: tally})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return less(scores[i].Tally, scores[j].Tally)
	})

	if limit >= 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}
