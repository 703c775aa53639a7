package services

import (
	"chatter-box/domain"
	"chatter-box/errors"
	"chatter-box/moderation"
	"chatter-box/repositories"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type IChatService interface {
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	MarkRead(ctx context.Context, cmd domain.MarkReadCommand) (ReadReceipt, error)
}

// ReadReceipt is the outcome of a live mark-read.
// Changed is false when the message had already been read, through the history fetch for instance.
type ReadReceipt struct {
	Message domain.Message
	At      time.Time
	Changed bool
}

type ChatService struct {
	log               *slog.Logger
	messageRepository repositories.IMessageRepository
	userRepository    repositories.IUserRepository
	censor            moderation.Censor
	validate          *validator.Validate
	maxContentLength  int
}

func NewChatService(log *slog.Logger, messageRepository repositories.IMessageRepository,
	userRepository repositories.IUserRepository, censor moderation.Censor, maxContentLength int) *ChatService {
	if censor == nil {
		censor = moderation.Noop{}
	}
	return &ChatService{
		log:               log,
		messageRepository: messageRepository,
		userRepository:    userRepository,
		censor:            censor,
		validate:          validator.New(),
		maxContentLength:  maxContentLength,
	}
}

// SendMessage persists at most one message per call, retries belong to the caller.
// Messaging yourself is rejected with ErrSelfMessage.
func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	cmd.Text = domain.NormalizeContent(cmd.Text)
	if err := s.validate.Struct(cmd); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if cmd.Sender == cmd.To {
		return domain.Message{}, errors.ErrSelfMessage
	}
	if s.maxContentLength > 0 && len([]rune(cmd.Text)) > s.maxContentLength {
		return domain.Message{}, fmt.Errorf("%w: content exceeds %d characters", errors.ErrValidation, s.maxContentLength)
	}
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if _, err := s.userRepository.GetUserByID(cmd.To); err != nil {
		return domain.Message{}, err
	}

	message, err := s.messageRepository.Create(cmd.Sender, cmd.To, s.censor.Censor(cmd.Text))
	if err != nil {
		return domain.Message{}, err
	}
	s.log.Debug("Message stored", "message_id", message.ID, "sender", message.Sender, "receiver", message.Receiver)
	return message, nil
}

// MarkRead flips a single message addressed to the reader.
// The reader must be the receiver of the message and the declared sender must match.
func (s *ChatService) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) (ReadReceipt, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return ReadReceipt{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if cmd.MessageID == uuid.Nil {
		return ReadReceipt{}, fmt.Errorf("%w: messageId is required", errors.ErrValidation)
	}
	if cmd.To != cmd.Reader {
		return ReadReceipt{}, fmt.Errorf("%w: only the receiver can mark a message as read", errors.ErrForbidden)
	}
	if err := ctx.Err(); err != nil {
		return ReadReceipt{}, err
	}

	message, err := s.messageRepository.GetByID(cmd.MessageID)
	if err != nil {
		return ReadReceipt{}, err
	}
	if message.Receiver != cmd.Reader {
		return ReadReceipt{}, fmt.Errorf("%w: message %s is not addressed to you", errors.ErrForbidden, cmd.MessageID)
	}
	if message.Sender != cmd.From {
		return ReadReceipt{}, fmt.Errorf("%w: message %s was not sent by %s", errors.ErrValidation, cmd.MessageID, cmd.From)
	}

	updated, changed, err := s.messageRepository.MarkRead(cmd.MessageID)
	if err != nil {
		return ReadReceipt{}, err
	}
	return ReadReceipt{Message: updated, At: time.Now().UTC(), Changed: changed}, nil
}
