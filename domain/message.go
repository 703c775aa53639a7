// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
// Messages are append only: content and creation time never change,
// the read flag only moves from false to true.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type UserID string

// Message represents a direct message between two users.
type Message struct {
	ID        uuid.UUID
	Sender    UserID
	Receiver  UserID
	Content   string
	Read      bool
	CreatedAt time.Time
}

// NormalizeContent trims the content the way it is persisted.
func NormalizeContent(content string) string {
	return strings.TrimSpace(content)
}

// Involves reports whether the message belongs to the conversation between a and b.
func (m Message) Involves(a, b UserID) bool {
	return (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a)
}

// IsUnreadFor reports whether the message is waiting to be read by reader.
func (m Message) IsUnreadFor(reader UserID) bool {
	return m.Receiver == reader && !m.Read
}

// ConversationKey returns an order independent identifier for the pair of users.
func ConversationKey(a, b UserID) string {
	if a > b {
		a, b = b, a
	}
	return string(a) + "|" + string(b)
}
