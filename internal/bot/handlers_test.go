package bot

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/graffic/soup/internal/bot/middleware"
	"github.com/graffic/soup/internal/cache"
	"github.com/graffic/soup/internal/quotes"
	"github.com/graffic/soup/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const groupID int64 = -100

var (
	alice   = models.User{ID: 1, FirstName: "Alice", Username: "alice_b"}
	bob     = models.User{ID: 2, FirstName: "Bob", Username: "bobby"}
	carol   = models.User{ID: 3, FirstName: "Carol"}
	soupBot = models.User{ID: 99, FirstName: "Soup", Username: "soup_bot", IsBot: true}

	group = models.Chat{ID: groupID, Type: models.ChatTypeSupergroup, Title: "friends"}

	baseTime = time.Date(2020, 5, 17, 12, 0, 0, 0, time.UTC)
)

func dmWith(u models.User) models.Chat {
	return models.Chat{ID: u.ID, Type: models.ChatTypePrivate, FirstName: u.FirstName}
}

type fixture struct {
	ctx       context.Context
	handlers  *Handlers
	messenger *mockMessenger
	handle    bot.HandlerFunc
	nextMsg   int
}

// newFixture wires the handlers, dispatcher and observation middleware over
// a fresh database. Messenger expectations are left to the test.
func newFixture(t *testing.T, threshold int) *fixture {
	t.Helper()
	db := testutils.NewTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messenger := newMockMessenger()

	h := NewHandlers(db.DB.DB, messenger, cache.NewSessions(time.Hour, time.Hour), Options{
		BotUsername:     "@soup_bot",
		DeleteThreshold: threshold,
		StatsLimit:      5,
		Logger:          logger,
	})
	registry := NewRegistry()
	h.Register(registry)
	dispatcher := NewDispatcher(registry, h, logger)

	return &fixture{
		ctx:       context.Background(),
		handlers:  h,
		messenger: messenger,
		handle:    middleware.Observe(h.store, logger)(dispatcher.HandleUpdate),
	}
}

// say delivers a message and returns it
func (f *fixture) say(from models.User, chat models.Chat, text string) *models.Message {
	return f.deliver(&models.Message{From: &from, Chat: chat, Text: text})
}

// replyTo delivers a message answering another one
func (f *fixture) replyTo(from models.User, chat models.Chat, text string, to *models.Message) *models.Message {
	return f.deliver(&models.Message{From: &from, Chat: chat, Text: text, ReplyToMessage: to})
}

func (f *fixture) deliver(msg *models.Message) *models.Message {
	f.nextMsg++
	msg.ID = f.nextMsg
	if msg.Date == 0 {
		msg.Date = int(baseTime.Unix()) + f.nextMsg*60
	}
	f.handle(f.ctx, nil, &models.Update{Message: msg})
	return msg
}

// press clicks a vote button under a message the bot sent
func (f *fixture) press(from models.User, chat models.Chat, sent sentMessage, data string) {
	f.handle(f.ctx, nil, &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb",
			From: from,
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Type:    models.MaybeInaccessibleMessageTypeMessage,
				Message: &models.Message{ID: int(sent.id), Chat: chat},
			},
		},
	})
}

// archive has bob quote a fresh message of alice and returns the quote
func (f *fixture) archive(t *testing.T, text string) *quotes.Quote {
	t.Helper()
	original := f.say(alice, group, text)
	f.replyTo(bob, group, "/addquote", original)
	require.Equal(t, "quote added", f.messenger.last().text)

	quote, err := f.handlers.store.GetQuoteByMessage(f.ctx, groupID, int64(original.ID))
	require.NoError(t, err)
	require.NotNil(t, quote)
	return quote
}

func TestAddQuote(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()

	original := f.say(alice, group, "<b>hi</b> & bye")
	f.replyTo(bob, group, "/addquote", original)

	answer := f.messenger.last()
	assert.Equal(t, "quote added", answer.text)
	assert.Equal(t, groupID, answer.chatID)

	quoteID, ok, err := f.handlers.store.QuoteIDFromMessage(f.ctx, groupID, answer.id)
	require.NoError(t, err)
	require.True(t, ok)

	quote, err := f.handlers.store.GetQuote(f.ctx, quoteID)
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.Equal(t, "<b>hi</b> & bye", quote.Content)
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt; &amp; bye", quote.ContentHTML)
	assert.Equal(t, alice.ID, quote.SentByID)
	assert.Equal(t, bob.ID, quote.QuotedByID)
	assert.False(t, quote.IsForward)
	assert.True(t, quote.SentAt.Equal(time.Unix(int64(original.Date), 0)))
	assert.Contains(t, string(quote.Source), `"message_id"`)

	f.replyTo(carol, group, "/addquote", original)
	assert.Equal(t, "quote already exists", f.messenger.last().text)
}

func TestAddQuote_Refusals(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()

	own := f.say(alice, group, "mine")
	f.replyTo(alice, group, "/addquote", own)
	assert.Equal(t, "can't quote your own messages", f.messenger.last().text)

	fromBot := f.say(soupBot, group, "beep")
	f.replyTo(alice, group, "/addqoute", fromBot)
	assert.Equal(t, "can't qoute soup messages", f.messenger.last().text)

	f.say(bob, group, "/addquote")
	assert.Equal(t, "reply to a message to quote it", f.messenger.last().text)

	sticker := f.deliver(&models.Message{From: &bob, Chat: group, Sticker: &models.Sticker{FileID: "s"}})
	sent := f.messenger.count()
	f.replyTo(alice, group, "/addquote", sticker)
	assert.Equal(t, sent, f.messenger.count())

	// Quoting is a group command
	text := f.say(bob, dmWith(alice), "hello")
	f.replyTo(alice, dmWith(alice), "/addquote", text)
	assert.Equal(t, sent, f.messenger.count())

	count, err := f.handlers.store.QuoteCount(f.ctx, groupID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAddQuote_Variants(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()

	f.replyTo(bob, group, "/sadquote", f.say(alice, group, "so sad"))
	assert.Equal(t, "quote 😭 added", f.messenger.last().text)

	f.replyTo(bob, group, "/madquote@soup_bot", f.say(alice, group, "so mad"))
	assert.Equal(t, "quote 😡 added", f.messenger.last().text)

	f.replyTo(bob, group, "/radquote", f.say(alice, group, "so rad"))
	assert.Equal(t, "quote 😎 added", f.messenger.last().text)

	f.replyTo(bob, group, "/addqoute", f.say(alice, group, "so typo"))
	assert.Equal(t, "qoute added", f.messenger.last().text)
}

func TestAddQuote_Forwarded(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()

	said := baseTime.Add(-24 * time.Hour)
	forwarded := f.deliver(&models.Message{
		From: &bob,
		Chat: group,
		Text: "wise words",
		ForwardOrigin: &models.MessageOrigin{
			MessageOriginUser: &models.MessageOriginUser{Date: int(said.Unix()), SenderUser: alice},
		},
	})
	f.replyTo(bob, group, "/addquote", forwarded)
	require.Equal(t, "quote added", f.messenger.last().text)

	quote, err := f.handlers.store.GetQuoteByMessage(f.ctx, groupID, int64(forwarded.ID))
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.True(t, quote.IsForward)
	assert.Equal(t, alice.ID, quote.SentByID)
	assert.True(t, quote.SentAt.Equal(said))
}

func TestAddQuote_PhotoIsResentAsPhoto(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()

	photo := f.deliver(&models.Message{
		From: &alice,
		Chat: group,
		Photo: []models.PhotoSize{
			{FileID: "thumb", Width: 90, Height: 90},
			{FileID: "full", Width: 1280, Height: 1280},
		},
		Caption: "look",
	})
	f.replyTo(bob, group, "/addquote", photo)
	require.Equal(t, "quote added", f.messenger.last().text)

	f.say(carol, group, "/random")
	sent := f.messenger.last()
	assert.Equal(t, "full", sent.fileID)
	assert.Contains(t, sent.text, `"look" - Alice`)
	f.messenger.AssertCalled(t, "SendPhoto", mock.Anything, groupID, "full", mock.Anything, mock.Anything)
}

func TestRandom(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()

	f.say(carol, group, "/random")
	assert.Equal(t, "no quotes in database", f.messenger.last().text)

	quote := f.archive(t, "hello there")

	f.say(carol, group, "/random")
	sent := f.messenger.last()
	assert.Contains(t, sent.text, `"hello there" - Alice`)
	assert.Equal(t, []string{"⬆ (0)", "score 0", "⬇ (0)"}, buttonLabels(sent.opts))

	shown, ok, err := f.handlers.store.QuoteIDFromMessage(f.ctx, groupID, sent.id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, quote.ID, shown)

	f.say(carol, group, "/random bob")
	assert.Equal(t, `no quotes found by "bob"`, f.messenger.last().text)

	f.say(carol, group, "/random alice")
	assert.Contains(t, f.messenger.last().text, "hello there")
}

func TestAuthorAndSearch(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()
	f.archive(t, "the cake is a lie")

	f.say(carol, group, "/author")
	assert.Equal(t, "usage: /author &lt;name&gt;", f.messenger.last().text)

	f.say(carol, group, "/author <nobody>")
	assert.Equal(t, `no quotes found by author "&lt;nobody&gt;"`, f.messenger.last().text)

	f.say(carol, group, "/author ali")
	assert.Contains(t, f.messenger.last().text, "the cake is a lie")

	f.say(carol, group, "/search cake u:alice_b")
	assert.Contains(t, f.messenger.last().text, "the cake is a lie")

	f.say(carol, group, "/search cake author:bob")
	assert.Equal(t, "no quotes found", f.messenger.last().text)

	f.say(carol, group, "/search cake flavor:chocolate")
	assert.Equal(t, `unknown tag in "flavor:chocolate"`, f.messenger.last().text)

	f.say(carol, group, "/search score:>=0 date:2020-05-17")
	assert.Contains(t, f.messenger.last().text, "the cake is a lie")

	sent := f.messenger.count()
	f.say(carol, group, "/search")
	assert.Equal(t, sent, f.messenger.count())
}

func TestCount(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()
	f.archive(t, "alice in wonderland")
	f.archive(t, "through the looking glass")

	f.say(carol, group, "/count")
	assert.Equal(t, "2 quotes in this chat", f.messenger.last().text)

	f.say(carol, group, "/count alice")
	assert.Equal(t, "1 quotes contain \"alice\"\n2 quotes were said by \"alice\"", f.messenger.last().text)
}

func TestVote(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()
	f.archive(t, "vote for me")

	f.say(carol, group, "/random")
	rendered := f.messenger.last()

	f.press(carol, group, rendered, "0")
	f.press(carol, group, rendered, "1")
	assert.Equal(t, []string{"⬆ (1)", "score 1", "⬇ (0)"}, f.messenger.editedButtons())
	f.press(carol, group, rendered, "0")
	f.press(carol, group, rendered, "1")
	assert.Equal(t, []string{"⬆ (0)", "score 0", "⬇ (0)"}, f.messenger.editedButtons())
	f.press(bob, group, rendered, "-1")
	assert.Equal(t, []string{"⬆ (0)", "score -1", "⬇ (1)"}, f.messenger.editedButtons())
	f.press(bob, group, rendered, "0")

	assert.Equal(t, []string{
		"you haven't voted on this quote!",
		"upvoted!",
		"⬆ you upvoted this quote",
		"vote removed!",
		"downvoted!",
		"⬇ you downvoted this quote",
	}, f.messenger.answers())
}

func TestVote_IgnoresUnknownMessagesAndData(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()
	f.archive(t, "vote for me")
	f.say(carol, group, "/random")
	rendered := f.messenger.last()

	f.press(carol, group, sentMessage{id: 424242}, "1")
	f.press(carol, group, rendered, "2")
	f.press(carol, group, rendered, "up")

	assert.Equal(t, []string{"", "", ""}, f.messenger.answers())
	f.messenger.AssertNotCalled(t, "EditButtons", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVote_DeletesQuote(t *testing.T) {
	f := newFixture(t, -1)
	f.messenger.acceptAll()

	quote := f.archive(t, "unpopular opinion")
	f.say(carol, group, "/random")
	rendered := f.messenger.last()

	f.press(carol, group, rendered, "-1")

	assert.Equal(t, []string{"vote added and quote deleted!"}, f.messenger.answers())
	renderings, err := f.handlers.store.GetQuoteMessages(f.ctx, quote.ID)
	require.NoError(t, err)
	require.Len(t, renderings, 2)
	for _, qm := range renderings {
		f.messenger.AssertCalled(t, "EditText", mock.Anything, qm.ChatID, qm.MessageID, quotes.DeletedText)
	}
	f.messenger.AssertNotCalled(t, "EditButtons", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.messenger.AssertNotCalled(t, "EditCaption", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f.say(carol, group, "/random")
	assert.Equal(t, "no quotes in database", f.messenger.last().text)
}

func TestDirectBrowsing(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()
	f.archive(t, "remember this")
	dm := dmWith(alice)

	f.say(alice, dm, "/random")
	assert.Equal(t, noChatSelected, f.messenger.last().text)

	f.say(alice, dm, "/chats")
	offer := f.messenger.last()
	assert.Contains(t, offer.text, "<b>[0]</b> friends")
	assert.Equal(t, [][]string{{"friends"}}, offer.opts.Keyboard)

	f.say(alice, dm, "7")
	assert.Equal(t, "invalid chat number", f.messenger.last().text)

	f.say(alice, dm, "FRIE")
	selected := f.messenger.last()
	assert.Equal(t, `selected chat "friends"`, selected.text)
	assert.True(t, selected.opts.RemoveKeyboard)

	f.say(alice, dm, "/which")
	assert.Equal(t, `searching quotes from "friends"`, f.messenger.last().text)

	f.say(alice, dm, "/random")
	rendered := f.messenger.last()
	assert.Equal(t, alice.ID, rendered.chatID)
	assert.Contains(t, rendered.text, "remember this")

	f.press(alice, dm, rendered, "1")
	assert.Equal(t, []string{"✅⬆ (1)", "score 1", "⬇ (0)"}, f.messenger.editedButtons())

	f.say(alice, dm, "/stats")
	assert.Contains(t, f.messenger.last().text, "• 1 total quotes")

	f.say(alice, dm, "/cancel")
	assert.Equal(t, "canceled", f.messenger.last().text)
	f.say(alice, dm, "/random")
	assert.Equal(t, noChatSelected, f.messenger.last().text)
}

func TestDirectBrowsing_NoChats(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()

	f.say(carol, dmWith(carol), "/start")
	assert.Equal(t, "<b>Chat selection</b>\nno chats found", f.messenger.last().text)

	sent := f.messenger.count()
	f.say(carol, group, "/which")
	assert.Equal(t, sent, f.messenger.count())
}

func TestStatsAndScores(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()

	f.say(carol, group, "/stats")
	assert.Equal(t, "no quotes in database", f.messenger.last().text)

	f.archive(t, "first")
	f.archive(t, "second")
	f.say(carol, group, "/random")
	f.press(carol, group, f.messenger.last(), "1")

	f.say(carol, group, "/stats")
	stats := f.messenger.last().text
	assert.Contains(t, stats, "<b>Overall</b>\n• 2 total quotes")
	assert.Contains(t, stats, "<b>Users with the most quotes</b>\n• 2 (100.0%): Alice")
	assert.Contains(t, stats, "<b>Users who add the most quotes</b>\n• 2 (100.0%): Bob")

	f.say(carol, group, "/most_quoted")
	assert.Equal(t, "<b>Users with the most quotes</b>\n• 2 (100.0%): Alice", f.messenger.last().text)

	f.say(carol, group, "/most_added 1")
	assert.Equal(t, "<b>Users who add the most quotes</b>\n• 2 (100.0%): Bob", f.messenger.last().text)

	f.say(carol, group, "/scores")
	assert.Equal(t,
		"<b>Users with the highest scores</b>\n• 1 (+1/-0): Alice\n\n<b>Users with the lowest scores</b>\n• 1 (+1/-0): Alice",
		f.messenger.last().text)

	f.say(carol, group, "/hi_scores")
	assert.Equal(t, "<b>Users with the highest scores</b>\n• 1 (+1/-0): Alice", f.messenger.last().text)
}

func TestHelp(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()

	f.say(carol, group, "/help")
	assert.Equal(t, groupHelp, f.messenger.last().text)

	f.say(carol, dmWith(carol), "/help")
	assert.Equal(t, directHelp, f.messenger.last().text)
}

func TestObservedMembershipsFeedChatSelection(t *testing.T) {
	f := newFixture(t, quotes.DefaultDeleteThreshold)
	f.messenger.acceptAll()

	f.say(alice, group, "hi")
	f.say(alice, models.Chat{ID: -200, Type: models.ChatTypeGroup, Title: "work"}, "hello")
	f.deliver(&models.Message{From: &bob, Chat: group, LeftChatMember: &alice})

	chats, err := f.handlers.store.UserChats(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "work", chats[0].Title)
}
