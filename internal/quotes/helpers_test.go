package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/graffic/soup/internal/testutils"
	"github.com/stretchr/testify/require"
)

const testChatID int64 = -100

var (
	alice = User{ID: 1, FirstName: "Alice", LastName: "Baker", Username: "alice_b"}
	bob   = User{ID: 2, FirstName: "Bob", Username: "bobby"}
	carol = User{ID: 3, FirstName: "Carol", LastName: "Doe"}

	baseTime = time.Date(2020, 5, 17, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	db     *testutils.TestDB
	store  *Store
	ctx    context.Context
	nextID int64
}

// newFixture seeds three users who are all members of the test chat
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutils.NewTestDB(t)
	f := &fixture{db: db, store: NewStore(db.DB.DB), ctx: context.Background()}

	f.chat(t, testChatID)
	for _, u := range []User{alice, bob, carol} {
		u := u
		require.NoError(t, f.store.UpsertUser(f.ctx, &u))
		require.NoError(t, f.store.AddMembership(f.ctx, u.ID, testChatID))
	}
	return f
}

func (f *fixture) chat(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, f.store.UpsertChat(f.ctx, &Chat{ID: id, Type: ChatSupergroup, Title: "chat"}))
}

// newQuote builds a distinct quote of sender archived by quoter
func (f *fixture) newQuote(chatID int64, sender, quoter User, content string) NewQuote {
	f.nextID++
	return NewQuote{
		ChatID:      chatID,
		MessageID:   f.nextID,
		SentAt:      baseTime.Add(time.Duration(f.nextID) * time.Minute),
		SentByID:    sender.ID,
		QuotedByID:  quoter.ID,
		Content:     content,
		ContentHTML: content,
	}
}

func (f *fixture) addQuote(t *testing.T, chatID int64, sender, quoter User, content string) *Quote {
	t.Helper()
	q, status, err := f.store.AddQuote(f.ctx, f.newQuote(chatID, sender, quoter, content))
	require.NoError(t, err)
	require.Equal(t, QuoteAdded, status)
	return q
}
