package quotes

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestStore_AddQuote(t *testing.T) {
	f := newFixture(t)

	nq := f.newQuote(testChatID, alice, bob, "hello world")
	nq.Source = datatypes.JSON(`{"message_id": 1}`)

	quote, status, err := f.store.AddQuote(f.ctx, nq)
	require.NoError(t, err)
	assert.Equal(t, QuoteAdded, status)
	assert.NotZero(t, quote.ID)
	assert.Equal(t, 0, quote.Score)
	assert.False(t, quote.Deleted)
	assert.Equal(t, MessageText, quote.MessageType)

	stored, err := f.store.GetQuote(f.ctx, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "hello world", stored.Content)
	assert.True(t, nq.SentAt.Equal(stored.SentAt))
	assert.Equal(t, alice.ID, stored.SentBy.ID)
	assert.JSONEq(t, `{"message_id": 1}`, string(stored.Source))
}

func TestStore_AddQuoteDeduplicates(t *testing.T) {
	f := newFixture(t)
	f.chat(t, -200)

	nq := f.newQuote(testChatID, alice, bob, "same words")
	first, status, err := f.store.AddQuote(f.ctx, nq)
	require.NoError(t, err)
	require.Equal(t, QuoteAdded, status)

	// Same message forwarded into another chat and archived by someone else
	again := nq
	again.ChatID = -200
	again.MessageID = 999
	again.QuotedByID = carol.ID

	second, status, err := f.store.AddQuote(f.ctx, again)
	require.NoError(t, err)
	assert.Equal(t, QuoteAlreadyExists, status)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	count, err := f.store.QuoteCount(f.ctx, -200)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_AddQuoteSameMessageTwice(t *testing.T) {
	f := newFixture(t)

	nq := f.newQuote(testChatID, alice, bob, "original")
	first, _, err := f.store.AddQuote(f.ctx, nq)
	require.NoError(t, err)

	// Edited since it was first archived
	edited := nq
	edited.Content = "edited"
	edited.ContentHTML = "edited"
	edited.QuotedByID = carol.ID

	second, status, err := f.store.AddQuote(f.ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, QuoteAlreadyExists, status)
	assert.Equal(t, first.ID, second.ID)
}

func TestStore_AddQuoteDoesNotResurrect(t *testing.T) {
	f := newFixture(t)

	nq := f.newQuote(testChatID, alice, bob, "bad joke")
	quote, _, err := f.store.AddQuote(f.ctx, nq)
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteQuote(f.ctx, quote.ID))

	again, status, err := f.store.AddQuote(f.ctx, nq)
	require.NoError(t, err)
	assert.Equal(t, QuotePreviouslyDeleted, status)
	assert.Nil(t, again)

	stored, err := f.store.GetQuote(f.ctx, quote.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted)
}

func TestStore_AddQuoteRejectsSelfQuote(t *testing.T) {
	f := newFixture(t)

	quote, _, err := f.store.AddQuote(f.ctx, f.newQuote(testChatID, alice, alice, "me"))
	assert.ErrorIs(t, err, ErrSelfQuote)
	assert.Nil(t, quote)
}

func TestStore_AddQuoteConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	nq := f.newQuote(testChatID, alice, bob, "race")

	const workers = 8
	statuses := make([]AddQuoteStatus, workers)
	ids := make([]int64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, status, err := f.store.AddQuote(f.ctx, nq)
			statuses[i], errs[i] = status, err
			if q != nil {
				ids[i] = q.ID
			}
		}(i)
	}
	wg.Wait()

	added := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if statuses[i] == QuoteAdded {
			added++
		} else {
			assert.Equal(t, QuoteAlreadyExists, statuses[i])
		}
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, added)
}

func TestStore_DeleteQuoteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	quote := f.addQuote(t, testChatID, alice, bob, "x")

	require.NoError(t, f.store.DeleteQuote(f.ctx, quote.ID))
	require.NoError(t, f.store.DeleteQuote(f.ctx, quote.ID))
	require.NoError(t, f.store.DeleteQuote(f.ctx, 12345))
}

func TestStore_LookupsReturnNilWhenMissing(t *testing.T) {
	f := newFixture(t)

	quote, err := f.store.GetQuote(f.ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, quote)

	quote, err = f.store.GetQuoteByMessage(f.ctx, testChatID, 42)
	require.NoError(t, err)
	assert.Nil(t, quote)

	first, err := f.store.FirstQuote(f.ctx, testChatID)
	require.NoError(t, err)
	assert.Nil(t, first)

	_, ok, err := f.store.QuoteIDFromMessage(f.ctx, testChatID, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_GetQuoteByMessage(t *testing.T) {
	f := newFixture(t)
	quote := f.addQuote(t, testChatID, alice, bob, "find me")

	found, err := f.store.GetQuoteByMessage(f.ctx, testChatID, quote.MessageID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, quote.ID, found.ID)
	assert.Equal(t, "Alice", found.SentBy.FirstName)
}

func TestStore_CountsAndEdges(t *testing.T) {
	f := newFixture(t)
	f.chat(t, -200)

	first := f.addQuote(t, testChatID, alice, bob, "the early bird")
	f.addQuote(t, testChatID, bob, carol, "a bird in the hand")
	gone := f.addQuote(t, testChatID, carol, alice, "birdless")
	last := f.addQuote(t, testChatID, alice, carol, "worm")
	f.addQuote(t, -200, alice, bob, "bird elsewhere")
	require.NoError(t, f.store.DeleteQuote(f.ctx, gone.ID))

	count, err := f.store.QuoteCount(f.ctx, testChatID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	byContent, byAuthor, err := f.store.CountMatching(f.ctx, testChatID, "bird")
	require.NoError(t, err)
	assert.Equal(t, int64(2), byContent)
	assert.Equal(t, int64(0), byAuthor)

	byContent, byAuthor, err = f.store.CountMatching(f.ctx, testChatID, "baker")
	require.NoError(t, err)
	assert.Equal(t, int64(0), byContent)
	assert.Equal(t, int64(2), byAuthor)

	_, byAuthor, err = f.store.CountMatching(f.ctx, testChatID, "BOBBY")
	require.NoError(t, err)
	assert.Equal(t, int64(1), byAuthor)

	earliest, err := f.store.FirstQuote(f.ctx, testChatID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, earliest.ID)
	assert.Equal(t, "Alice", earliest.SentBy.FirstName)

	latest, err := f.store.LastQuote(f.ctx, testChatID)
	require.NoError(t, err)
	assert.Equal(t, last.ID, latest.ID)
}

func TestStore_CountMatchingEscapesWildcards(t *testing.T) {
	f := newFixture(t)
	f.addQuote(t, testChatID, alice, bob, "100% sure")
	f.addQuote(t, testChatID, bob, alice, "1000 times")

	byContent, _, err := f.store.CountMatching(f.ctx, testChatID, "100%")
	require.NoError(t, err)
	assert.Equal(t, int64(1), byContent)
}

func TestStore_QuoteMessages(t *testing.T) {
	f := newFixture(t)
	quote := f.addQuote(t, testChatID, alice, bob, "shown twice")
	f.chat(t, bob.ID)

	require.NoError(t, f.store.AddQuoteMessage(f.ctx, testChatID, 500, quote.ID))
	require.NoError(t, f.store.AddQuoteMessage(f.ctx, bob.ID, 17, quote.ID))
	require.NoError(t, f.store.AddQuoteMessage(f.ctx, testChatID, 500, quote.ID))

	id, ok, err := f.store.QuoteIDFromMessage(f.ctx, testChatID, 500)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, quote.ID, id)

	messages, err := f.store.GetQuoteMessages(f.ctx, quote.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, int64(500), messages[0].MessageID)
	assert.Equal(t, bob.ID, messages[1].ChatID)
}

func TestStore_SentAtKeepsMicroseconds(t *testing.T) {
	f := newFixture(t)

	nq := f.newQuote(testChatID, alice, bob, "precise")
	nq.SentAt = time.Date(2021, 1, 2, 3, 4, 5, 123456789, time.FixedZone("X", 3600))

	quote, status, err := f.store.AddQuote(f.ctx, nq)
	require.NoError(t, err)
	require.Equal(t, QuoteAdded, status)

	_, status, err = f.store.AddQuote(f.ctx, nq)
	require.NoError(t, err)
	assert.Equal(t, QuoteAlreadyExists, status)

	stored, err := f.store.GetQuote(f.ctx, quote.ID)
	require.NoError(t, err)
	assert.True(t, stored.SentAt.Equal(time.Date(2021, 1, 2, 2, 4, 5, 123456000, time.UTC)))
}
