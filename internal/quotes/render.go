package quotes

import (
	"fmt"
	"html"
	"time"
	"unicode/utf8"
)

const (
	// TimeFormat is how quote timestamps are shown
	TimeFormat = "2006-01-02 15:04:05"

	// MaxMessageLength and MaxCaptionLength are Telegram's limits in characters
	MaxMessageLength = 4096
	MaxCaptionLength = 1024

	// TruncateLength caps the quote text before it is laid out
	TruncateLength = 800

	// DeletedText replaces every rendering of a deleted quote
	DeletedText = "[quote was deleted]"

	snipMarker = "... (snip)"
)

// Renderer formats quotes and statistics as Telegram HTML.
// Times are shown in the renderer's location.
type Renderer struct {
	loc *time.Location
}

// NewRenderer creates a renderer showing times in loc, UTC when nil
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

// Quote lays out a quote and its author within limit characters
func (r *Renderer) Quote(quote *Quote, author *User, limit int) string {
	name := "Unknown"
	if author != nil {
		name = html.EscapeString(author.FirstName)
	}
	date := r.formatTime(quote.SentAt)

	text := quote.ContentHTML
	if text == "" {
		return fmt.Sprintf("[no caption] - %s\n%s", name, date)
	}
	text = truncateRunes(text, TruncateLength)

	rendered := fmt.Sprintf("\"%s\" - %s\n<i>%s</i>", text, name, date)
	over := utf8.RuneCountInString(rendered) - limit
	if over <= 0 {
		return rendered
	}

	keep := utf8.RuneCountInString(text) - over - utf8.RuneCountInString(snipMarker)
	text = truncateRunes(text, max(keep, 0))
	return fmt.Sprintf("\"%s...\" (snip) - %s\n<i>%s</i>", text, name, date)
}

// Limit returns the length limit of the message carrying the quote
func (r *Renderer) Limit(quote *Quote) int {
	if quote.MessageType == MessagePhoto {
		return MaxCaptionLength
	}
	return MaxMessageLength
}

// UserCounts lists users with their number of quotes and share of total
func (r *Renderer) UserCounts(counts []UserCount, total int64) []string {
	lines := make([]string, 0, len(counts))
	for _, c := range counts {
		share := 0.0
		if total > 0 {
			share = float64(c.Count) / float64(total) * 100
		}
		line := fmt.Sprintf("• %d (%.1f%%): %s", c.Count, share, c.User.FullName())
		lines = append(lines, html.EscapeString(line))
	}
	return lines
}

// UserScores lists users with their score and vote counts
func (r *Renderer) UserScores(scores []UserScore) []string {
	lines := make([]string, 0, len(scores))
	for _, s := range scores {
		line := fmt.Sprintf("• %d (+%d/-%d): %s", s.Tally.Score, s.Tally.Up, s.Tally.Down, s.User.FullName())
		lines = append(lines, html.EscapeString(line))
	}
	return lines
}

// Overview summarizes the archive of a chat
func (r *Renderer) Overview(total int64, first, last *Quote) []string {
	lines := []string{
		"<b>Overall</b>",
		fmt.Sprintf("• %d total quotes", total),
	}
	if first != nil {
		lines = append(lines, fmt.Sprintf("• First: %s by %s", r.formatTime(first.SentAt), authorName(first)))
	}
	if last != nil {
		lines = append(lines, fmt.Sprintf("• Last: %s by %s", r.formatTime(last.SentAt), authorName(last)))
	}
	return lines
}

// Count describes how many quotes matched a term
func (r *Renderer) Count(term string, byContent, byAuthor int64) string {
	return fmt.Sprintf("%d quotes contain \"%s\"\n%d quotes were said by \"%s\"",
		byContent, html.EscapeString(term), byAuthor, html.EscapeString(term))
}

func (r *Renderer) formatTime(t time.Time) string {
	return t.In(r.loc).Format(TimeFormat)
}

func authorName(q *Quote) string {
	if q.SentBy == nil {
		return "Unknown"
	}
	return html.EscapeString(q.SentBy.FirstName)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
