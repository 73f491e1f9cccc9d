package cache

import (
	"errors"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var (
	ErrNoChoices     = errors.New("no chats offered")
	ErrInvalidChoice = errors.New("invalid chat number")
	ErrNoMatch       = errors.New("no titles matched")
)

// Choice is a chat a user may browse from a direct message
type Choice struct {
	ChatID int64
	Title  string
}

// Session is the browsing state of one user
type Session struct {
	Choices   []Choice
	Selecting bool
	Current   *Choice
}

// Sessions keeps which chat each user browses from direct messages.
// Sessions expire after the configured TTL of inactivity.
type Sessions struct {
	cache *gocache.Cache
}

// NewSessions creates a session store. Expired sessions are purged every
// cleanupInterval.
func NewSessions(ttl, cleanupInterval time.Duration) *Sessions {
	return &Sessions{cache: gocache.New(ttl, cleanupInterval)}
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Get returns a copy of the user's session
func (s *Sessions) Get(userID int64) (Session, bool) {
	x, found := s.cache.Get(key(userID))
	if !found {
		return Session{}, false
	}
	return x.(Session), true
}

func (s *Sessions) save(userID int64, session Session) {
	s.cache.Set(key(userID), session, gocache.DefaultExpiration)
}

// Offer stores the chats the user may pick from and waits for a pick.
// The current chat, if any, is kept until another one is picked.
func (s *Sessions) Offer(userID int64, choices []Choice) {
	session, _ := s.Get(userID)
	session.Choices = append([]Choice(nil), choices...)
	session.Selecting = len(choices) > 0
	s.save(userID, session)
}

// Selecting reports whether the user was offered chats and has not picked one
func (s *Sessions) Selecting(userID int64) bool {
	session, ok := s.Get(userID)
	return ok && session.Selecting
}

// Select picks one of the offered chats, by its number or by a
// case-insensitive part of its title
func (s *Sessions) Select(userID int64, input string) (Choice, error) {
	session, ok := s.Get(userID)
	if !ok || len(session.Choices) == 0 {
		return Choice{}, ErrNoChoices
	}

	input = strings.TrimSpace(input)
	choice, err := pick(session.Choices, input)
	if err != nil {
		return Choice{}, err
	}

	session.Current = &choice
	session.Selecting = false
	s.save(userID, session)
	return choice, nil
}

func pick(choices []Choice, input string) (Choice, error) {
	if i, err := strconv.Atoi(input); err == nil {
		if i < 0 || i >= len(choices) {
			return Choice{}, ErrInvalidChoice
		}
		return choices[i], nil
	}

	needle := strings.ToLower(input)
	for _, c := range choices {
		if strings.Contains(strings.ToLower(c.Title), needle) {
			return c, nil
		}
	}
	return Choice{}, ErrNoMatch
}

// Current returns the chat the user browses
func (s *Sessions) Current(userID int64) (Choice, bool) {
	session, ok := s.Get(userID)
	if !ok || session.Current == nil {
		return Choice{}, false
	}
	return *session.Current, true
}

// Clear forgets the user's session
func (s *Sessions) Clear(userID int64) {
	s.cache.Delete(key(userID))
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	return s.cache.ItemCount()
}
