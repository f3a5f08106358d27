package store

import (
	"sort"

	"github.com/capitalize-ai/care-messaging/internal/model"
)

// SortSummaries orders summaries for display: unread first, then most recent
// activity, with conversations that have no messages after all that do. Ties
// fall back to the counterpart's display name and then the conversation id
// so the order is total.
func SortSummaries(summaries []model.ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaryLess(&summaries[i], &summaries[j])
	})
}

func summaryLess(a, b *model.ConversationSummary) bool {
	if a.HasUnread != b.HasUnread {
		return a.HasUnread
	}

	switch {
	case a.LastMessageAt != nil && b.LastMessageAt == nil:
		return true
	case a.LastMessageAt == nil && b.LastMessageAt != nil:
		return false
	case a.LastMessageAt != nil && b.LastMessageAt != nil && !a.LastMessageAt.Equal(*b.LastMessageAt):
		return a.LastMessageAt.After(*b.LastMessageAt)
	}

	if a.OtherParticipant.DisplayName != b.OtherParticipant.DisplayName {
		return a.OtherParticipant.DisplayName < b.OtherParticipant.DisplayName
	}
	return a.ConversationID < b.ConversationID
}
