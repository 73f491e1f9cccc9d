package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/graffic/soup/internal/quotes"
	"github.com/graffic/soup/internal/telegram"
	"gorm.io/datatypes"
)

const (
	loudlyCryingFace = "😭"
	poutingFace      = "😡"
	sunglassesFace   = "😎"
)

// formatResponse puts the emoji between every word of s
func formatResponse(s, emoji string) string {
	if emoji == "" {
		return s
	}
	return strings.Join(strings.Split(s, " "), " "+emoji+" ")
}

// addQuote archives the message the command replies to. word names the
// quote in the answers and emoji decorates them.
func (h *Handlers) addQuote(word, emoji string) CommandFunc {
	return func(ctx context.Context, req *Request) error {
		msg := req.Message
		quoted := msg.ReplyToMessage
		if quoted == nil {
			return h.reply(ctx, msg, formatResponse(fmt.Sprintf("reply to a message to %s it", word), emoji))
		}

		body, ok := quotedContent(quoted)
		if !ok {
			h.logger.Debug("nothing to quote", "chat_id", msg.Chat.ID, "message_id", quoted.ID)
			return nil
		}

		sentBy, sentAt, isForward := quotedOrigin(quoted)
		if sentBy == nil {
			return nil
		}

		if h.botUsername != "" && strings.EqualFold(sentBy.Username, h.botUsername) {
			return h.reply(ctx, msg, formatResponse(fmt.Sprintf("can't %s soup messages", word), emoji))
		}
		if sentBy.ID == msg.From.ID {
			return h.reply(ctx, msg, formatResponse(fmt.Sprintf("can't %s your own messages", word), emoji))
		}

		if err := h.store.UpsertUser(ctx, telegram.ToUser(sentBy)); err != nil {
			return err
		}
		if err := h.store.UpsertUser(ctx, telegram.ToUser(msg.From)); err != nil {
			return err
		}

		source, err := json.Marshal(quoted)
		if err != nil {
			return fmt.Errorf("failed to encode quoted message: %w", err)
		}

		quote, status, err := h.store.AddQuote(ctx, quotes.NewQuote{
			ChatID:      msg.Chat.ID,
			MessageID:   int64(quoted.ID),
			IsForward:   isForward,
			SentAt:      sentAt,
			SentByID:    sentBy.ID,
			QuotedByID:  msg.From.ID,
			Content:     body.text,
			ContentHTML: body.html,
			MessageType: body.messageType,
			FileID:      body.fileID,
			Source:      datatypes.JSON(source),
		})
		if errors.Is(err, quotes.ErrSelfQuote) {
			return h.reply(ctx, msg, formatResponse(fmt.Sprintf("can't %s your own messages", word), emoji))
		}
		if err != nil {
			return err
		}

		var response string
		switch status {
		case quotes.QuoteAdded:
			response = fmt.Sprintf("%s added", word)
		case quotes.QuoteAlreadyExists:
			response = fmt.Sprintf("%s already exists", word)
		case quotes.QuotePreviouslyDeleted:
			return h.reply(ctx, msg, formatResponse(fmt.Sprintf("this %s was previously deleted", word), emoji))
		}

		sent, err := h.messenger.Send(ctx, msg.Chat.ID, formatResponse(response, emoji),
			&telegram.SendOptions{ReplyTo: int64(msg.ID)})
		if err != nil {
			return err
		}

		h.logger.Info("quote archived", "chat_id", msg.Chat.ID, "quote_id", quote.ID, "status", status.String())
		return h.store.AddQuoteMessage(ctx, msg.Chat.ID, sent, quote.ID)
	}
}

type quotedBody struct {
	text        string
	html        string
	messageType quotes.MessageType
	fileID      string
}

// quotedContent extracts what can be archived from a message: its text, or
// the caption of a photo or video
func quotedContent(m *models.Message) (quotedBody, bool) {
	switch {
	case len(m.Photo) > 0 && m.Caption != "":
		return quotedBody{
			text:        m.Caption,
			html:        telegram.EntitiesToHTML(m.Caption, m.CaptionEntities),
			messageType: quotes.MessagePhoto,
			fileID:      largestPhoto(m.Photo),
		}, true
	case m.Video != nil && m.Caption != "":
		return quotedBody{
			text:        m.Caption,
			html:        telegram.EntitiesToHTML(m.Caption, m.CaptionEntities),
			messageType: quotes.MessageText,
		}, true
	case m.Text != "":
		return quotedBody{
			text:        m.Text,
			html:        telegram.EntitiesToHTML(m.Text, m.Entities),
			messageType: quotes.MessageText,
		}, true
	default:
		return quotedBody{}, false
	}
}

func largestPhoto(sizes []models.PhotoSize) string {
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best.FileID
}

// quotedOrigin returns who wrote the message and when. Messages forwarded
// from a visible user are attributed to that user.
func quotedOrigin(m *models.Message) (*models.User, time.Time, bool) {
	if m.ForwardOrigin != nil && m.ForwardOrigin.MessageOriginUser != nil {
		origin := m.ForwardOrigin.MessageOriginUser
		return &origin.SenderUser, time.Unix(int64(origin.Date), 0), true
	}
	return m.From, time.Unix(int64(m.Date), 0), false
}
