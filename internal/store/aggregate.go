package store

import (
	"sort"

	"unisell/server/internal/models"
)

// LatestPerCounterpart picks the representative message of every
// conversation userID takes part in. msgs must be in the store's natural
// scan (insertion) order; a later message wins a timestamp tie. Messages not
// involving userID are ignored. The result is newest first.
func LatestPerCounterpart(userID string, msgs []models.Message) []models.Message {
	type pick struct {
		msg models.Message
		pos int
	}

	latest := make(map[string]pick)
	for i, m := range msgs {
		if !m.Involves(userID) {
			continue
		}
		counterpart := m.CounterpartOf(userID)
		cur, ok := latest[counterpart]
		if !ok || !m.CreatedAt.Before(cur.msg.CreatedAt) {
			latest[counterpart] = pick{msg: m, pos: i}
		}
	}

	picks := make([]pick, 0, len(latest))
	for _, p := range latest {
		picks = append(picks, p)
	}
	sort.Slice(picks, func(i, j int) bool {
		if !picks[i].msg.CreatedAt.Equal(picks[j].msg.CreatedAt) {
			return picks[i].msg.CreatedAt.After(picks[j].msg.CreatedAt)
		}
		return picks[i].pos > picks[j].pos
	})

	out := make([]models.Message, len(picks))
	for i, p := range picks {
		out[i] = p.msg
	}
	return out
}

// sortAscending orders a thread oldest first, keeping scan order on ties
func sortAscending(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// applyPage trims an ascending thread to the newest page.Limit messages
// created before page.Before.
func applyPage(msgs []models.Message, page Page) []models.Message {
	if !page.Before.IsZero() {
		cut := sort.Search(len(msgs), func(i int) bool {
			return !msgs[i].CreatedAt.Before(page.Before)
		})
		msgs = msgs[:cut]
	}
	if page.Limit > 0 && len(msgs) > page.Limit {
		msgs = msgs[len(msgs)-page.Limit:]
	}
	return msgs
}
