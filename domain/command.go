package domain

import "github.com/google/uuid"

type Command interface {
	Issuer() UserID
}

// SendMessageCommand is the intent of Sender to deliver Text to To.
type SendMessageCommand struct {
	Sender UserID `validate:"required"`
	To     UserID `validate:"required"`
	Text   string `validate:"required"`
}

func (c SendMessageCommand) Issuer() UserID { return c.Sender }

// MarkReadCommand means Reader has read MessageID sent by From to To.
type MarkReadCommand struct {
	Reader    UserID `validate:"required"`
	MessageID uuid.UUID
	From      UserID `validate:"required"`
	To        UserID `validate:"required"`
}

func (c MarkReadCommand) Issuer() UserID { return c.Reader }

type TypingCommand struct {
	From   UserID `validate:"required"`
	To     UserID `validate:"required"`
	Typing bool
}

func (c TypingCommand) Issuer() UserID { return c.From }
