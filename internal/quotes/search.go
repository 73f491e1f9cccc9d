package quotes

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// Searcher picks random live quotes of a chat
type Searcher struct {
	db *gorm.DB
}

// NewSearcher creates a new quote searcher
func NewSearcher(db *gorm.DB) *Searcher {
	return &Searcher{db: db}
}

// GetRandomQuote picks a live quote of the chat uniformly at random. A
// non-empty name restricts it to authors whose full name or username
// contains name, ignoring a leading @. Both results are nil when nothing
// matches.
func (s *Searcher) GetRandomQuote(ctx context.Context, chatID int64, name string) (*Quote, *User, error) {
	query := liveQuotes(s.db.WithContext(ctx), chatID)

	if name = strings.TrimPrefix(strings.TrimSpace(name), "@"); name != "" {
		pattern := likePattern(name)
		query = query.Where(sentByAnySQL, pattern, pattern)
	}

	return pickRandom(query)
}

// Search picks a random live quote of the chat whose content contains
// terms and which matches every tag. Empty terms filter nothing.
func (s *Searcher) Search(ctx context.Context, chatID int64, terms string, tags []Tag) (*Quote, *User, error) {
	return pickRandom(searchQuery(s.db.WithContext(ctx), chatID, terms, tags))
}

// searchQuery builds the filter of a search without running it
func searchQuery(db *gorm.DB, chatID int64, terms string, tags []Tag) *gorm.DB {
	query := liveQuotes(db, chatID)

	if terms = strings.TrimSpace(terms); terms != "" {
		query = query.Where("quotes.content ILIKE ?", likePattern(terms))
	}

	for _, tag := range tags {
		query = tag.Apply(query)
	}

	return query
}

func pickRandom(query *gorm.DB) (*Quote, *User, error) {
	quote, err := firstQuote(query.Preload("SentBy").Order("RANDOM()"))
	if err != nil || quote == nil {
		return nil, nil, err
	}
	return quote, quote.SentBy, nil
}
