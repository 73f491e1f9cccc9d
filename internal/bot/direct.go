package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/graffic/soup/internal/cache"
	"github.com/graffic/soup/internal/telegram"
)

// Chat lists below this size are also offered as a reply keyboard
const keyboardChoices = 6

// chats offers the user the chats they can browse from direct messages
func (h *Handlers) chats(ctx context.Context, req *Request) error {
	userID := req.Message.From.ID
	chats, err := h.store.UserChats(ctx, userID)
	if err != nil {
		return err
	}

	if len(chats) == 0 {
		return h.reply(ctx, req.Message, "<b>Chat selection</b>\nno chats found")
	}

	lines := []string{
		"<b>Chat selection</b>",
		"Choose a chat by its number or title:",
		"",
	}
	choices := make([]cache.Choice, 0, len(chats))
	titles := make([]string, 0, len(chats))
	for i, chat := range chats {
		lines = append(lines, fmt.Sprintf("<b>[%d]</b> %s", i, html.EscapeString(chat.Title)))
		choices = append(choices, cache.Choice{ChatID: chat.ID, Title: chat.Title})
		titles = append(titles, chat.Title)
	}
	h.sessions.Offer(userID, choices)

	opts := &telegram.SendOptions{ReplyTo: int64(req.Message.ID)}
	if len(chats) < keyboardChoices {
		opts.Keyboard = chunk(titles, 2)
	}
	_, err = h.messenger.Send(ctx, req.Message.Chat.ID, strings.Join(lines, "\n"), opts)
	return err
}

// SelectChat picks the chat to browse from the user's answer to /chats
func (h *Handlers) SelectChat(ctx context.Context, msg *models.Message) error {
	choice, err := h.sessions.Select(msg.From.ID, msg.Text)
	switch {
	case errors.Is(err, cache.ErrInvalidChoice), errors.Is(err, cache.ErrNoMatch):
		return h.reply(ctx, msg, err.Error())
	case err != nil:
		return h.reply(ctx, msg, noChatSelected)
	}

	_, err = h.messenger.Send(ctx, msg.Chat.ID,
		fmt.Sprintf("selected chat \"%s\"", html.EscapeString(choice.Title)),
		&telegram.SendOptions{ReplyTo: int64(msg.ID), RemoveKeyboard: true})
	return err
}

func (h *Handlers) which(ctx context.Context, req *Request) error {
	choice, ok := h.sessions.Current(req.Message.From.ID)
	if !ok {
		return h.reply(ctx, req.Message, noChatSelected)
	}

	title := choice.Title
	chat, err := h.store.GetChat(ctx, choice.ChatID)
	if err != nil {
		return err
	}
	if chat != nil {
		title = chat.Title
	}
	return h.reply(ctx, req.Message, fmt.Sprintf("searching quotes from \"%s\"", html.EscapeString(title)))
}

func (h *Handlers) cancel(ctx context.Context, req *Request) error {
	h.sessions.Clear(req.Message.From.ID)
	_, err := h.messenger.Send(ctx, req.Message.Chat.ID, "canceled",
		&telegram.SendOptions{ReplyTo: int64(req.Message.ID), RemoveKeyboard: true})
	return err
}

func (h *Handlers) help(ctx context.Context, req *Request) error {
	if req.Direct {
		return h.reply(ctx, req.Message, directHelp)
	}
	return h.reply(ctx, req.Message, groupHelp)
}

var groupHelp = strings.Join([]string{
	"\"Nice help!\" - <b>Soup</b>",
	"",
	"• <b>Groups</b>: /addquote",
	"• <b>Anywhere</b>: /author &lt;name&gt;, /count [term], /help, /most_added, " +
		"/most_quoted, /random [name], /scores, /search &lt;terms&gt;, /stats",
	"• <b>Direct messages</b>: /chats or /start, /which, /cancel",
}, "\n")

var directHelp = strings.Join([]string{
	"<b>Adding quotes</b>",
	"Reply to a message in a group with /addquote. Photo and video captions can be quoted too.",
	"",
	"<b>Browsing from here</b>",
	"Use /chats to pick one of your groups, then any group command works on it. " +
		"/which names the chat and /cancel stops browsing.",
	"",
	"<b>Searching</b>",
	"/search takes words and tags, all of which must match:",
	"• <code>author:name</code> the author's full name contains name",
	"• <code>username:name</code> or <code>u:name</code> username contains name",
	"• <code>quoted_by:name</code> added by a user whose username contains name",
	"• <code>date:2020-05-17</code> said on that day",
	"• <code>score:3</code>, <code>score:&gt;=3</code>, <code>score:&lt;0</code> compares the score",
	"",
	"<b>Voting</b>",
	"Use the buttons under a quote. Pressing the same button again removes your vote. " +
		"Quotes voted low enough are deleted.",
}, "\n")

// chunk splits items into rows of at most size
func chunk(items []string, size int) [][]string {
	var rows [][]string
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		rows = append(rows, items[start:end])
	}
	return rows
}
