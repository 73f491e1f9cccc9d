package telegram

import (
	"html"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/go-telegram/bot/models"
)

// EntitiesToHTML renders message text with its formatting entities as
// Telegram HTML. Entity offsets count UTF-16 code units; entities are
// expected to nest, as Telegram sends them.
func EntitiesToHTML(text string, entities []models.MessageEntity) string {
	if len(entities) == 0 {
		return html.EscapeString(text)
	}

	units := utf16.Encode([]rune(text))

	sorted := make([]models.MessageEntity, 0, len(entities))
	for _, e := range entities {
		if _, ok := openTag(e); !ok || e.Length <= 0 || e.Offset < 0 || e.Offset+e.Length > len(units) {
			continue
		}
		sorted = append(sorted, e)
	}
	// Outer entities first: earlier start, then longer span.
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Offset != sorted[j].Offset {
			return sorted[i].Offset < sorted[j].Offset
		}
		return sorted[i].Length > sorted[j].Length
	})

	var b strings.Builder
	var open []models.MessageEntity
	next := 0
	pos := 0

	flush := func(end int) {
		if end > pos {
			b.WriteString(html.EscapeString(string(utf16.Decode(units[pos:end]))))
			pos = end
		}
	}

	for {
		// Advance to the nearest entity start or end.
		boundary := len(units)
		if next < len(sorted) && sorted[next].Offset < boundary {
			boundary = sorted[next].Offset
		}
		if n := len(open); n > 0 {
			if end := open[n-1].Offset + open[n-1].Length; end < boundary {
				boundary = end
			}
		}
		flush(boundary)

		for n := len(open); n > 0 && open[n-1].Offset+open[n-1].Length <= pos; n = len(open) {
			b.WriteString(closeTag(open[n-1]))
			open = open[:n-1]
		}
		for next < len(sorted) && sorted[next].Offset == pos {
			tag, _ := openTag(sorted[next])
			b.WriteString(tag)
			open = append(open, sorted[next])
			next++
		}

		if pos == len(units) && len(open) == 0 && next == len(sorted) {
			break
		}
	}

	return b.String()
}

func openTag(e models.MessageEntity) (string, bool) {
	switch string(e.Type) {
	case "bold":
		return "<b>", true
	case "italic":
		return "<i>", true
	case "underline":
		return "<u>", true
	case "strikethrough":
		return "<s>", true
	case "spoiler":
		return "<tg-spoiler>", true
	case "code":
		return "<code>", true
	case "pre":
		if e.Language != "" {
			return `<pre><code class="language-` + html.EscapeString(e.Language) + `">`, true
		}
		return "<pre>", true
	case "blockquote":
		return "<blockquote>", true
	case "text_link":
		return `<a href="` + html.EscapeString(e.URL) + `">`, true
	case "text_mention":
		if e.User == nil {
			return "", false
		}
		return `<a href="tg://user?id=` + strconv.FormatInt(e.User.ID, 10) + `">`, true
	default:
		return "", false
	}
}

func closeTag(e models.MessageEntity) string {
	switch string(e.Type) {
	case "bold":
		return "</b>"
	case "italic":
		return "</i>"
	case "underline":
		return "</u>"
	case "strikethrough":
		return "</s>"
	case "spoiler":
		return "</tg-spoiler>"
	case "code":
		return "</code>"
	case "pre":
		if e.Language != "" {
			return "</code></pre>"
		}
		return "</pre>"
	case "blockquote":
		return "</blockquote>"
	default:
		return "</a>"
	}
}
