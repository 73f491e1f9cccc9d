package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot/models"
	"github.com/graffic/soup/internal/quotes"
	"github.com/graffic/soup/internal/telegram"
)

// Vote handles a press on the vote buttons of a rendered quote
func (h *Handlers) Vote(ctx context.Context, query *models.CallbackQuery) error {
	msg := query.Message.Message
	if msg == nil {
		return h.messenger.AnswerCallback(ctx, query.ID, "")
	}

	value, err := strconv.Atoi(query.Data)
	direction := quotes.Direction(value)
	if err != nil || !direction.Valid() {
		return h.messenger.AnswerCallback(ctx, query.ID, "")
	}

	quoteID, ok, err := h.store.QuoteIDFromMessage(ctx, msg.Chat.ID, int64(msg.ID))
	if err != nil {
		return err
	}
	if !ok {
		return h.messenger.AnswerCallback(ctx, query.ID, "")
	}

	userID := query.From.ID
	if direction == quotes.NoVote {
		return h.reportVote(ctx, query.ID, userID, quoteID)
	}

	status, err := h.scorer.AddVote(ctx, userID, quoteID, direction)
	if err != nil {
		return err
	}

	var answer string
	switch status {
	case quotes.VoteAdded:
		answer = "upvoted!"
		if direction == quotes.Downvote {
			answer = "downvoted!"
		}
	case quotes.AlreadyVoted:
		// A second press on the same button retracts the vote
		status, err = h.scorer.AddVote(ctx, userID, quoteID, quotes.NoVote)
		if err != nil {
			return err
		}
		answer = "vote removed!"
	}

	if status == quotes.QuoteDeleted {
		if err := h.messenger.AnswerCallback(ctx, query.ID, "vote added and quote deleted!"); err != nil {
			return err
		}
		h.logger.Info("quote deleted by votes", "quote_id", quoteID, "user_id", userID)
		return h.eraseQuote(ctx, quoteID)
	}

	if err := h.messenger.AnswerCallback(ctx, query.ID, answer); err != nil {
		return err
	}

	buttons, err := h.voteButtons(ctx, userID, quoteID, telegram.IsPrivate(&msg.Chat))
	if err != nil {
		return err
	}
	return h.messenger.EditButtons(ctx, msg.Chat.ID, int64(msg.ID), buttons)
}

func (h *Handlers) reportVote(ctx context.Context, queryID string, userID, quoteID int64) error {
	vote, err := h.scorer.UserVote(ctx, userID, quoteID)
	if err != nil {
		return err
	}

	answer := "you haven't voted on this quote!"
	if vote != nil {
		switch vote.Direction {
		case quotes.Upvote:
			answer = fmt.Sprintf("%s you upvoted this quote", upArrow)
		case quotes.Downvote:
			answer = fmt.Sprintf("%s you downvoted this quote", downArrow)
		}
	}
	return h.messenger.AnswerCallback(ctx, queryID, answer)
}

// eraseQuote replaces every message showing the quote with a deletion
// notice. Messages Telegram no longer lets us edit are skipped.
func (h *Handlers) eraseQuote(ctx context.Context, quoteID int64) error {
	quote, err := h.store.GetQuote(ctx, quoteID)
	if err != nil {
		return err
	}
	renderings, err := h.store.GetQuoteMessages(ctx, quoteID)
	if err != nil {
		return err
	}

	photo := quote != nil && quote.MessageType == quotes.MessagePhoto
	for _, qm := range renderings {
		if photo {
			// Photo quotes are shown as captions, their /addquote answers as text
			if err := h.messenger.EditCaption(ctx, qm.ChatID, qm.MessageID, quotes.DeletedText); err == nil {
				continue
			}
		}
		if err := h.messenger.EditText(ctx, qm.ChatID, qm.MessageID, quotes.DeletedText); err != nil {
			h.logger.Debug("could not erase quote message", "chat_id", qm.ChatID, "message_id", qm.MessageID, "error", err)
		}
	}
	return nil
}
