package event

import (
	"chatter-box/domain"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is anything pushed to a live connection without it being requested.
type DomainEvent interface {
	Name() string
	OccurredAt() time.Time
}

const (
	MessageReceivedName    = "receive-message"
	MessageReadName        = "message-read"
	TypingChangedName      = "typing"
	OnlineUsersChangedName = "online-users"
)

type MessageReceived struct {
	Message domain.Message
}

func (e MessageReceived) Name() string          { return MessageReceivedName }
func (e MessageReceived) OccurredAt() time.Time { return e.Message.CreatedAt }

// MessageRead is the read receipt delivered to the original sender.
type MessageRead struct {
	MessageID uuid.UUID
	By        domain.UserID
	At        time.Time
}

func (e MessageRead) Name() string          { return MessageReadName }
func (e MessageRead) OccurredAt() time.Time { return e.At }

type TypingChanged struct {
	From   domain.UserID
	Typing bool
	At     time.Time
}

func (e TypingChanged) Name() string          { return TypingChangedName }
func (e TypingChanged) OccurredAt() time.Time { return e.At }

type OnlineUsersChanged struct {
	UserIDs []domain.UserID
	At      time.Time
}

func (e OnlineUsersChanged) Name() string          { return OnlineUsersChangedName }
func (e OnlineUsersChanged) OccurredAt() time.Time { return e.At }

// PresenceChanged is emitted internally on every connect and disconnect.
// It is not sent on the wire, the fanout turns it into OnlineUsersChanged.
type PresenceChanged struct {
	UserID domain.UserID
	Online bool
	At     time.Time
}

func (e PresenceChanged) Name() string          { return "presence-changed" }
func (e PresenceChanged) OccurredAt() time.Time { return e.At }
