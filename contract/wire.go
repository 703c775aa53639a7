package contract

import (
	"chatter-box/domain"
	"time"

	"github.com/samber/lo"
)

// MessageDTO is the JSON shape of a message on both the REST and live surfaces.
type MessageDTO struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToMessageDTO(m domain.Message) MessageDTO {
	return MessageDTO{
		ID:        m.ID.String(),
		Sender:    string(m.Sender),
		Receiver:  string(m.Receiver),
		Content:   m.Content,
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
}

func ToMessageDTOs(messages []domain.Message) []MessageDTO {
	return lo.Map(messages, func(m domain.Message, _ int) MessageDTO { return ToMessageDTO(m) })
}

// UserSummaryDTO is one entry of the chat list.
type UserSummaryDTO struct {
	PeerID      string      `json:"peerId"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	LastMessage *MessageDTO `json:"lastMessage,omitempty"`
	UnreadCount int         `json:"unreadCount"`
}

func ToUserSummaryDTO(s domain.ConversationSummary) UserSummaryDTO {
	dto := UserSummaryDTO{
		PeerID:      string(s.Peer.ID),
		Username:    s.Peer.Username,
		Email:       s.Peer.Email,
		UnreadCount: s.UnreadCount,
	}
	if s.LastMessage != nil {
		last := ToMessageDTO(*s.LastMessage)
		dto.LastMessage = &last
	}
	return dto
}

func UserIDsToStrings(ids []domain.UserID) []string {
	return lo.Map(ids, func(id domain.UserID, _ int) string { return string(id) })
}
