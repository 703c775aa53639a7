package services

import (
	"chatter-box/domain"
	"chatter-box/errors"
	"chatter-box/repositories"
	"context"
	"log/slog"

	"github.com/samber/lo"
)

type IConversationService interface {
	Summarize(ctx context.Context, forUser domain.UserID) ([]domain.ConversationSummary, error)
	History(ctx context.Context, self, peer domain.UserID) ([]domain.Message, error)
}

// ConversationService is a pure read side over the stores, nothing is cached.
type ConversationService struct {
	log               *slog.Logger
	messageRepository repositories.IMessageRepository
	userRepository    repositories.IUserRepository
}

func NewConversationService(log *slog.Logger, messageRepository repositories.IMessageRepository,
	userRepository repositories.IUserRepository) *ConversationService {
	return &ConversationService{log: log, messageRepository: messageRepository, userRepository: userRepository}
}

// Summarize returns one summary per other known user.
// It returns ErrNoPeers with an empty slice when forUser is alone,
// any other error is a storage failure.
func (s *ConversationService) Summarize(ctx context.Context, forUser domain.UserID) ([]domain.ConversationSummary, error) {
	users, err := s.userRepository.ListUsers()
	if err != nil {
		return nil, err
	}
	peers := lo.Filter(users, func(u domain.User, _ int) bool { return u.ID != forUser })
	if len(peers) == 0 {
		return []domain.ConversationSummary{}, errors.ErrNoPeers
	}

	summaries := make([]domain.ConversationSummary, 0, len(peers))
	for _, peer := range peers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		messages, err := s.messageRepository.ListConversation(forUser, peer.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.Summarize(forUser, peer, messages))
	}
	domain.SortSummaries(summaries)
	return summaries, nil
}

// History returns the conversation newest first, then marks what peer sent to self as read.
// The returned messages reflect the state before the read transition, and only
// listed messages are marked: anything stored after the listing stays unread.
func (s *ConversationService) History(ctx context.Context, self, peer domain.UserID) ([]domain.Message, error) {
	messages, err := s.messageRepository.ListConversation(self, peer)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return messages, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	count, err := s.messageRepository.MarkIncomingReadUntil(peer, self, messages[0].CreatedAt)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		s.log.Debug("Conversation opened", "reader", self, "peer", peer, "marked_read", count)
	}
	return messages, nil
}
