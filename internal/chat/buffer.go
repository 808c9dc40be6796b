// Buffer merge helpers. Every mutation of the local message buffer goes
// through these pure functions so that interleaved asynchronous completions
// (optimistic append, push merge, backfill, fallback refresh) cannot corrupt
// ordering: the result is always keyed-deduplicated and sorted by creation
// time ascending.
package chat

import (
	"sort"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
)

// chronological returns a copy of a newest-first page in oldest-first order.
func chronological(page []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(page))
	for i, m := range page {
		out[len(page)-1-i] = m
	}
	return out
}

// indexOf returns the position of the entry with the given identity key,
// or -1 when absent.
func indexOf(buf []domain.ChatMessage, id string) int {
	for i := range buf {
		if buf[i].ID == id {
			return i
		}
	}
	return -1
}

// containsID reports whether an entry with the given identity key exists.
func containsID(buf []domain.ChatMessage, id string) bool {
	return indexOf(buf, id) >= 0
}

// mergeOrdered merges msgs into buf by identity key and returns a new slice.
// An entry already present is replaced with the incoming copy (the store's
// view wins); new entries are inserted. The result is sorted by CreatedAt
// ascending with the key as tiebreak, so any interleaving of merge calls
// converges to the same order.
func mergeOrdered(buf []domain.ChatMessage, msgs ...domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(buf), len(buf)+len(msgs))
	copy(out, buf)
	for _, m := range msgs {
		if i := indexOf(out, m.ID); i >= 0 {
			out[i] = m
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
