package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/graffic/soup/internal/quotes"
)

// maxEchoLength caps user input repeated back in answers
const maxEchoLength = 100

func (h *Handlers) random(ctx context.Context, req *Request) error {
	name := strings.Join(req.Args, " ")
	quote, author, err := h.searcher.GetRandomQuote(ctx, req.ChatID, name)
	if err != nil {
		return err
	}
	if quote == nil {
		if name != "" {
			return h.reply(ctx, req.Message, fmt.Sprintf("no quotes found by \"%s\"", echo(name)))
		}
		return h.reply(ctx, req.Message, "no quotes in database")
	}
	return h.sendQuote(ctx, req, quote, author)
}

func (h *Handlers) author(ctx context.Context, req *Request) error {
	name := strings.Join(req.Args, " ")
	if name == "" {
		return h.reply(ctx, req.Message, "usage: /author &lt;name&gt;")
	}

	quote, author, err := h.searcher.GetRandomQuote(ctx, req.ChatID, name)
	if err != nil {
		return err
	}
	if quote == nil {
		return h.reply(ctx, req.Message, fmt.Sprintf("no quotes found by author \"%s\"", echo(name)))
	}
	return h.sendQuote(ctx, req, quote, author)
}

func (h *Handlers) search(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 {
		return nil
	}

	terms, tags, err := h.tags.ParseSearch(req.Args)
	var tagErr *quotes.TagError
	if errors.As(err, &tagErr) {
		return h.reply(ctx, req.Message, tagErrorText(tagErr))
	}
	if err != nil {
		return err
	}

	quote, author, err := h.searcher.Search(ctx, req.ChatID, terms, tags)
	if err != nil {
		return err
	}
	if quote == nil {
		return h.reply(ctx, req.Message, "no quotes found")
	}
	return h.sendQuote(ctx, req, quote, author)
}

func (h *Handlers) count(ctx context.Context, req *Request) error {
	term := strings.Join(req.Args, " ")
	if term == "" {
		total, err := h.store.QuoteCount(ctx, req.ChatID)
		if err != nil {
			return err
		}
		return h.reply(ctx, req.Message, fmt.Sprintf("%d quotes in this chat", total))
	}

	byContent, byAuthor, err := h.store.CountMatching(ctx, req.ChatID, term)
	if err != nil {
		return err
	}
	return h.reply(ctx, req.Message, h.renderer.Count(truncate(term), byContent, byAuthor))
}

func tagErrorText(err *quotes.TagError) string {
	token := echo(err.Token)
	switch {
	case errors.Is(err, quotes.ErrUnknownTag):
		return fmt.Sprintf("unknown tag in \"%s\"", token)
	case errors.Is(err, quotes.ErrInvalidComparator):
		return fmt.Sprintf("only score accepts a comparison, in \"%s\"", token)
	case errors.Is(err, quotes.ErrInvalidTagValue):
		return fmt.Sprintf("invalid value in \"%s\"", token)
	default:
		return fmt.Sprintf("malformed tag \"%s\"", token)
	}
}

// echo prepares user input to be repeated in an HTML answer
func echo(s string) string {
	return html.EscapeString(truncate(s))
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxEchoLength {
		return s
	}
	return string(r[:maxEchoLength]) + "..."
}
