package domain

import (
	"sort"
	"strings"
)

// ConversationSummary is a derived view of a peer, the latest message exchanged
// with them and how many of their messages are still unread.
// It is recomputed on every request and never stored.
type ConversationSummary struct {
	Peer        User
	LastMessage *Message
	UnreadCount int
}

// Summarize builds the summary of the conversation between forUser and peer
// from every message the two of them exchanged, in any order.
func Summarize(forUser UserID, peer User, messages []Message) ConversationSummary {
	summary := ConversationSummary{Peer: peer}
	for i := range messages {
		m := messages[i]
		if !m.Involves(forUser, peer.ID) {
			continue
		}
		if summary.LastMessage == nil || m.CreatedAt.After(summary.LastMessage.CreatedAt) {
			summary.LastMessage = &m
		}
		if m.Sender == peer.ID && m.IsUnreadFor(forUser) {
			summary.UnreadCount++
		}
	}
	return summary
}

// SortSummaries orders summaries by most recent message first.
// Peers without history come last, ties are broken by username.
func SortSummaries(summaries []ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		switch {
		case a.LastMessage != nil && b.LastMessage == nil:
			return true
		case a.LastMessage == nil && b.LastMessage != nil:
			return false
		case a.LastMessage != nil && b.LastMessage != nil &&
			!a.LastMessage.CreatedAt.Equal(b.LastMessage.CreatedAt):
			return a.LastMessage.CreatedAt.After(b.LastMessage.CreatedAt)
		}
		return strings.Compare(a.Peer.Username, b.Peer.Username) < 0
	})
}
