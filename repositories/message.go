//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chatter-box/domain"
	"chatter-box/errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Create(sender, receiver domain.UserID, content string) (domain.Message, error)
	ListConversation(a, b domain.UserID) ([]domain.Message, error)
	MarkIncomingRead(from, to domain.UserID) (int, error)
	MarkIncomingReadUntil(from, to domain.UserID, until time.Time) (int, error)
	GetByID(id uuid.UUID) (domain.Message, error)
	MarkRead(id uuid.UUID) (domain.Message, bool, error)
}

const maxConflictRetries = 3

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// DiskMessage is the persisted shape of a message.
type DiskMessage struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
	Read     bool   `json:"read"`
	At       int64  `json:"at"`
}

// Create persists a new unread message.
// The key is formatted as "msg:{pair}:{timestamp_padded}:{uuid}" to:
//  1. Keep both directions of a conversation under a single prefix.
//  2. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  3. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// A secondary "msgid:{uuid}" entry points back to the primary key.
func (m *MessageRepository) Create(sender, receiver domain.UserID, content string) (domain.Message, error) {
	content = domain.NormalizeContent(content)
	switch {
	case sender == "" || receiver == "":
		return domain.Message{}, fmt.Errorf("%w: sender and receiver are required", errors.ErrValidation)
	case content == "":
		return domain.Message{}, fmt.Errorf("%w: content is required", errors.ErrValidation)
	}

	message := domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		Read:      false,
		CreatedAt: m.now(),
	}
	key := messageKey(message)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(idKey(message.ID), key)
	})
	if err != nil {
		m.log.Error("Message not persisted", "sender", sender, "receiver", receiver, "error", err)
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return message, nil
}

// ListConversation returns every message exchanged between a and b, most recent first.
// The reverse prefix scan yields the order directly, no sort is needed.
func (m *MessageRepository) ListConversation(a, b domain.UserID) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(a, b)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest key of the conversation, then walk backwards
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			message, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// MarkIncomingRead flips every unread message sent by from to to in one transaction.
// It returns how many messages changed, zero when everything was already read.
func (m *MessageRepository) MarkIncomingRead(from, to domain.UserID) (int, error) {
	return m.MarkIncomingReadUntil(from, to, time.Time{})
}

// MarkIncomingReadUntil is MarkIncomingRead restricted to messages created at or
// before until. A zero until means no bound.
func (m *MessageRepository) MarkIncomingReadUntil(from, to domain.UserID, until time.Time) (int, error) {
	updated := 0
	err := m.update(func(txn *badger.Txn) error {
		type pending struct {
			key   []byte
			value []byte
		}
		var changes []pending

		prefix := conversationPrefix(from, to)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var disk DiskMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			}); err != nil {
				it.Close()
				return err
			}
			// Keys sort by creation time within the pair
			if !until.IsZero() && disk.At > until.UnixNano() {
				break
			}
			if disk.Sender != string(from) || disk.Receiver != string(to) || disk.Read {
				continue
			}
			disk.Read = true
			bytes, err := json.Marshal(disk)
			if err != nil {
				it.Close()
				return err
			}
			changes = append(changes, pending{key: item.KeyCopy(nil), value: bytes})
		}
		it.Close()

		for _, change := range changes {
			if err := txn.Set(change.key, change.value); err != nil {
				return err
			}
		}
		updated = len(changes)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	if updated > 0 {
		m.log.Debug("Messages marked as read", "from", from, "to", to, "count", updated)
	}
	return updated, nil
}

// GetByID resolves a message through its secondary id entry.
func (m *MessageRepository) GetByID(id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := primaryItem(txn, id)
		if err != nil {
			return err
		}
		message, err = decodeItem(item)
		return err
	})
	if err != nil {
		return domain.Message{}, wrapLookupError(id, err)
	}
	return message, nil
}

// MarkRead flips a single message to read.
// The boolean reports whether the message changed.
func (m *MessageRepository) MarkRead(id uuid.UUID) (domain.Message, bool, error) {
	var message domain.Message
	changed := false
	err := m.update(func(txn *badger.Txn) error {
		changed = false
		item, err := primaryItem(txn, id)
		if err != nil {
			return err
		}
		if message, err = decodeItem(item); err != nil {
			return err
		}
		if message.Read {
			return nil
		}
		message.Read = true
		bytes, err := json.Marshal(fromMessage(message))
		if err != nil {
			return err
		}
		changed = true
		return txn.Set(item.KeyCopy(nil), bytes)
	})
	if err != nil {
		return domain.Message{}, false, wrapLookupError(id, err)
	}
	return message, changed, nil
}

// update retries read-modify-write transactions that lost a conflict
// against a concurrent read transition on the same messages.
func (m *MessageRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = m.db.Update(fn); !errors.Is(err, badger.ErrConflict) {
			return err
		}
		m.log.Debug("Read transition conflicted, retrying", "attempt", attempt+1)
	}
	return err
}

func primaryItem(txn *badger.Txn, id uuid.UUID) (*badger.Item, error) {
	pointer, err := txn.Get(idKey(id))
	if err != nil {
		return nil, err
	}
	key, err := pointer.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return txn.Get(key)
}

func wrapLookupError(id uuid.UUID, err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %v", errors.ErrStorage, err)
}

func conversationPrefix(a, b domain.UserID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", domain.ConversationKey(a, b)))
}

func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s",
		conversationPrefix(message.Sender, message.Receiver),
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

func idKey(id uuid.UUID) []byte {
	return []byte("msgid:" + id.String())
}

func decodeItem(item *badger.Item) (domain.Message, error) {
	var disk DiskMessage
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &disk)
	}); err != nil {
		return domain.Message{}, err
	}
	return toMessage(disk)
}

func fromMessage(message domain.Message) DiskMessage {
	return DiskMessage{
		ID:       message.ID.String(),
		Sender:   string(message.Sender),
		Receiver: string(message.Receiver),
		Content:  message.Content,
		Read:     message.Read,
		At:       message.CreatedAt.UnixNano(),
	}
}

func toMessage(disk DiskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		Sender:    domain.UserID(disk.Sender),
		Receiver:  domain.UserID(disk.Receiver),
		Content:   disk.Content,
		Read:      disk.Read,
		CreatedAt: time.Unix(0, disk.At).UTC(),
	}, nil
}
