package gateway

import (
	"chatter-box/contract"
	"chatter-box/domain/event"
	"encoding/json"
	"fmt"
	"time"
)

// Event types of the live channel.
const (
	TypeSendMessage    = "send-message"
	TypeSendMessageAck = "send-message-ack"
	TypeReceiveMessage = event.MessageReceivedName
	TypeMarkRead       = "mark-read"
	TypeMarkReadAck    = "mark-read-ack"
	TypeMessageRead    = event.MessageReadName
	TypeTyping         = event.TypingChangedName
	TypeOnlineUsers    = event.OnlineUsersChangedName
	TypeError          = "error"
)

const (
	AckStatusOK    = "ok"
	AckStatusError = "error"
)

// Envelope frames every event in both directions.
// ID is chosen by the client and echoed on the matching ack or error.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SendMessagePayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type SendMessageAck struct {
	Status  string               `json:"status"`
	Message *contract.MessageDTO `json:"message,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type MarkReadPayload struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type MarkReadAck struct {
	MessageID string `json:"messageId"`
	Read      bool   `json:"read"`
}

type MessageReadPayload struct {
	MessageID string    `json:"messageId"`
	By        string    `json:"by"`
	At        time.Time `json:"at"`
}

// TypingPayload carries To inbound and From outbound.
type TypingPayload struct {
	To     string `json:"to,omitempty"`
	From   string `json:"from,omitempty"`
	Typing bool   `json:"typing"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func newEnvelope(eventType, id string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", eventType, err)
	}
	return Envelope{Type: eventType, ID: id, Payload: raw}, nil
}

// encodeEvent turns a pushed domain event into its wire envelope.
func encodeEvent(e event.DomainEvent) (Envelope, error) {
	switch evt := e.(type) {
	case event.MessageReceived:
		return newEnvelope(TypeReceiveMessage, "", contract.ToMessageDTO(evt.Message))
	case event.MessageRead:
		return newEnvelope(TypeMessageRead, "", MessageReadPayload{
			MessageID: evt.MessageID.String(),
			By:        string(evt.By),
			At:        evt.At,
		})
	case event.TypingChanged:
		return newEnvelope(TypeTyping, "", TypingPayload{From: string(evt.From), Typing: evt.Typing})
	case event.OnlineUsersChanged:
		return newEnvelope(TypeOnlineUsers, "", contract.UserIDsToStrings(evt.UserIDs))
	default:
		return Envelope{}, fmt.Errorf("event %q is not sent on the live channel", e.Name())
	}
}
