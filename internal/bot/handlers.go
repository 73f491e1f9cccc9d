package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/graffic/soup/internal/cache"
	"github.com/graffic/soup/internal/quotes"
	"github.com/graffic/soup/internal/telegram"
	"gorm.io/gorm"
)

const (
	checkMark = "✅"
	upArrow   = "⬆"
	downArrow = "⬇"

	noChatSelected = "no chat selected, use /chats to pick one"
)

// Options tunes the command handlers
type Options struct {
	// BotUsername is the bot's own username, with or without the leading @
	BotUsername     string
	DeleteThreshold int
	StatsLimit      int
	Location        *time.Location
	Logger          *slog.Logger
}

// Handlers implements every command on top of the quote archive
type Handlers struct {
	store     *quotes.Store
	searcher  *quotes.Searcher
	scorer    *quotes.Scorer
	ranker    *quotes.Ranker
	renderer  *quotes.Renderer
	tags      quotes.TagParser
	sessions  *cache.Sessions
	messenger telegram.Messenger

	botUsername string
	statsLimit  int
	logger      *slog.Logger
}

// NewHandlers wires the archive components behind the commands
func NewHandlers(db *gorm.DB, messenger telegram.Messenger, sessions *cache.Sessions, opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	statsLimit := opts.StatsLimit
	if statsLimit <= 0 {
		statsLimit = 5
	}

	scorer := quotes.NewScorerWithThreshold(db, opts.DeleteThreshold)
	return &Handlers{
		store:       quotes.NewStore(db),
		searcher:    quotes.NewSearcher(db),
		scorer:      scorer,
		ranker:      quotes.NewRanker(db, scorer),
		renderer:    quotes.NewRenderer(opts.Location),
		tags:        quotes.TagParser{Location: opts.Location},
		sessions:    sessions,
		messenger:   messenger,
		botUsername: strings.TrimPrefix(opts.BotUsername, "@"),
		statsLimit:  statsLimit,
		logger:      logger,
	}
}

// Register adds every command to the registry
func (h *Handlers) Register(r *Registry) {
	r.Register("addquote", GroupOnly, "Reply to a message to add it as a quote", h.addQuote("quote", ""))
	r.Register("addqoute", GroupOnly, "", h.addQuote("qoute", ""))
	r.Register("sadquote", GroupOnly, "", h.addQuote("quote", loudlyCryingFace))
	r.Register("madquote", GroupOnly, "", h.addQuote("quote", poutingFace))
	r.Register("radquote", GroupOnly, "", h.addQuote("quote", sunglassesFace))

	r.Register("random", Anywhere, "Get a random quote", CommandFunc(h.random))
	r.Register("author", Anywhere, "Get a random quote by someone", CommandFunc(h.author))
	r.Register("search", Anywhere, "Search quotes by text and tags", CommandFunc(h.search))
	r.Register("count", Anywhere, "Count quotes, optionally matching a term", CommandFunc(h.count))

	r.Register("stats", Anywhere, "Show quote statistics", h.stats(true, true, true))
	r.Register("most_quoted", Anywhere, "Users with the most quotes", h.stats(false, true, false))
	r.Register("most_added", Anywhere, "Users who add the most quotes", h.stats(false, false, true))
	r.Register("scores", Anywhere, "Highest and lowest scoring users", h.scores(true, true))
	r.Register("hi_scores", Anywhere, "Highest scoring users", h.scores(true, false))
	r.Register("lo_scores", Anywhere, "Lowest scoring users", h.scores(false, true))

	r.Register("start", DirectOnly, "", CommandFunc(h.chats))
	r.Register("chats", DirectOnly, "Pick a chat to browse from here", CommandFunc(h.chats))
	r.Register("which", DirectOnly, "Show the chat being browsed", CommandFunc(h.which))
	r.Register("cancel", DirectOnly, "Stop browsing a chat", CommandFunc(h.cancel))

	r.Register("help", Unscoped, "Show help", CommandFunc(h.help))
}

func (h *Handlers) reply(ctx context.Context, msg *models.Message, text string) error {
	_, err := h.messenger.Send(ctx, msg.Chat.ID, text, &telegram.SendOptions{ReplyTo: int64(msg.ID)})
	return err
}

// sendQuote replies with a rendered quote and its vote buttons, and
// remembers which quote the reply shows
func (h *Handlers) sendQuote(ctx context.Context, req *Request, quote *quotes.Quote, author *quotes.User) error {
	buttons, err := h.voteButtons(ctx, req.Message.From.ID, quote.ID, req.Direct)
	if err != nil {
		return err
	}

	opts := &telegram.SendOptions{ReplyTo: int64(req.Message.ID), Buttons: buttons}
	text := h.renderer.Quote(quote, author, h.renderer.Limit(quote))

	var sent int64
	if quote.MessageType == quotes.MessagePhoto && quote.FileID != "" {
		sent, err = h.messenger.SendPhoto(ctx, req.Message.Chat.ID, quote.FileID, text, opts)
	} else {
		sent, err = h.messenger.Send(ctx, req.Message.Chat.ID, text, opts)
	}
	if err != nil {
		return err
	}

	return h.store.AddQuoteMessage(ctx, req.Message.Chat.ID, sent, quote.ID)
}

// voteButtons builds the up, score and down buttons of a quote. In direct
// messages the user's own vote is checked.
func (h *Handlers) voteButtons(ctx context.Context, userID, quoteID int64, direct bool) ([]telegram.Button, error) {
	tally, err := h.scorer.GetVotesByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	up := fmt.Sprintf("%s (%d)", upArrow, tally.Up)
	score := fmt.Sprintf("score %d", tally.Score)
	down := fmt.Sprintf("%s (%d)", downArrow, tally.Down)

	if direct {
		vote, err := h.scorer.UserVote(ctx, userID, quoteID)
		if err != nil {
			return nil, err
		}
		if vote != nil {
			switch vote.Direction {
			case quotes.Upvote:
				up = checkMark + up
			case quotes.Downvote:
				down = checkMark + down
			}
		}
	}

	return []telegram.Button{
		{Text: up, Data: "1"},
		{Text: score, Data: "0"},
		{Text: down, Data: "-1"},
	}, nil
}
