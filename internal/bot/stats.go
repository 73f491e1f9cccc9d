package bot

import (
	"context"
	"strconv"
	"strings"
)

// parseLimit reads the arguments as a positive count, falling back to def
func parseLimit(args []string, def int) int {
	limit, err := strconv.Atoi(strings.Join(args, ""))
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

// stats reports the overview of a chat's archive and its top users
func (h *Handlers) stats(general, quoted, added bool) CommandFunc {
	return func(ctx context.Context, req *Request) error {
		limit := parseLimit(req.Args, h.statsLimit)

		first, err := h.store.FirstQuote(ctx, req.ChatID)
		if err != nil {
			return err
		}
		if first == nil {
			return h.reply(ctx, req.Message, "no quotes in database")
		}

		total, err := h.store.QuoteCount(ctx, req.ChatID)
		if err != nil {
			return err
		}

		var lines []string
		if general {
			last, err := h.store.LastQuote(ctx, req.ChatID)
			if err != nil {
				return err
			}
			lines = append(lines, h.renderer.Overview(total, first, last)...)
			lines = append(lines, "")
		}

		if quoted {
			counts, err := h.ranker.MostQuoted(ctx, req.ChatID, limit)
			if err != nil {
				return err
			}
			lines = append(lines, "<b>Users with the most quotes</b>")
			lines = append(lines, h.renderer.UserCounts(counts, total)...)
			lines = append(lines, "")
		}

		if added {
			counts, err := h.ranker.MostQuotesAdded(ctx, req.ChatID, limit)
			if err != nil {
				return err
			}
			lines = append(lines, "<b>Users who add the most quotes</b>")
			lines = append(lines, h.renderer.UserCounts(counts, total)...)
		}

		return h.reply(ctx, req.Message, strings.TrimRight(strings.Join(lines, "\n"), "\n"))
	}
}

// scores reports the users whose quotes were voted highest and lowest
func (h *Handlers) scores(high, low bool) CommandFunc {
	return func(ctx context.Context, req *Request) error {
		limit := parseLimit(req.Args, h.statsLimit)

		var lines []string
		if high {
			best, err := h.ranker.HighestScoring(ctx, req.ChatID, limit)
			if err != nil {
				return err
			}
			lines = append(lines, "<b>Users with the highest scores</b>")
			lines = append(lines, h.renderer.UserScores(best)...)
		}

		if high && low {
			lines = append(lines, "")
		}

		if low {
			worst, err := h.ranker.LowestScoring(ctx, req.ChatID, limit)
			if err != nil {
				return err
			}
			lines = append(lines, "<b>Users with the lowest scores</b>")
			lines = append(lines, h.renderer.UserScores(worst)...)
		}

		return h.reply(ctx, req.Message, strings.Join(lines, "\n"))
	}
}
