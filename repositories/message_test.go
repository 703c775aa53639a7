package repositories

import (
	"chatter-box/domain"
	"chatter-box/errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// steppingClock returns a clock moving forward by one minute at every call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Minute)
		return current
	}
}

func newMessageRepository(t *testing.T) *MessageRepository {
	repository := NewMessageRepository(openDB(t), slog.Default())
	repository.now = steppingClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	return repository
}

func Test_Create_Then_List_Returns_Newest_First(t *testing.T) {
	req := require.New(t)
	repository := newMessageRepository(t)
	alice, bob := domain.UserID("alice"), domain.UserID("bob")

	first, err := repository.Create(alice, bob, "hello bob")
	req.NoError(err)
	second, err := repository.Create(bob, alice, "  hi alice  ")
	req.NoError(err)
	third, err := repository.Create(alice, bob, "how are you?")
	req.NoError(err)

	req.Equal("hi alice", second.Content)
	req.False(third.Read)

	messages, err := repository.ListConversation(bob, alice)
	req.NoError(err)
	req.Equal([]domain.Message{third, second, first}, messages)
}

func Test_ListConversation_Is_Scoped_To_The_Pair(t *testing.T) {
	req := require.New(t)
	repository := newMessageRepository(t)

	_, err := repository.Create("alice", "bob", "for bob")
	req.NoError(err)
	_, err = repository.Create("alice", "carol", "for carol")
	req.NoError(err)

	messages, err := repository.ListConversation("alice", "carol")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("for carol", messages[0].Content)

	empty, err := repository.ListConversation("bob", "carol")
	req.NoError(err)
	req.NotNil(empty)
	req.Empty(empty)
}

func Test_Create_Rejects_Blank_Content(t *testing.T) {
	req := require.New(t)
	repository := newMessageRepository(t)

	_, err := repository.Create("alice", "bob", "   \n\t")
	req.ErrorIs(err, errors.ErrValidation)

	_, err = repository.Create("", "bob", "hello")
	req.ErrorIs(err, errors.ErrValidation)

	messages, err := repository.ListConversation("alice", "bob")
	req.NoError(err)
	req.Empty(messages)
}

func Test_MarkIncomingRead_Is_Idempotent_And_Directional(t *testing.T) {
	req := require.New(t)
	repository := newMessageRepository(t)
	alice, bob := domain.UserID("alice"), domain.UserID("bob")

	for _, text := range []string{"one", "two", "three"} {
		_, err := repository.Create(alice, bob, text)
		req.NoError(err)
	}
	reply, err := repository.Create(bob, alice, "reply")
	req.NoError(err)

	// When bob reads what alice sent
	count, err := repository.MarkIncomingRead(alice, bob)
	req.NoError(err)
	req.Equal(3, count)

	// Then a second pass changes nothing
	count, err = repository.MarkIncomingRead(alice, bob)
	req.NoError(err)
	req.Zero(count)

	// And bob's own message to alice is untouched
	messages, err := repository.ListConversation(alice, bob)
	req.NoError(err)
	for _, m := range messages {
		if m.ID == reply.ID {
			req.False(m.Read)
			continue
		}
		req.True(m.Read)
	}
}

func Test_MarkIncomingReadUntil_Leaves_Later_Messages_Unread(t *testing.T) {
	req := require.New(t)
	repository := newMessageRepository(t)
	alice, bob := domain.UserID("alice"), domain.UserID("bob")

	_, err := repository.Create(alice, bob, "first")
	req.NoError(err)
	_, err = repository.Create(alice, bob, "second")
	req.NoError(err)

	// Given bob listed the conversation
	listed, err := repository.ListConversation(bob, alice)
	req.NoError(err)
	req.Len(listed, 2)

	// When alice sends again before the read transition
	late, err := repository.Create(alice, bob, "late")
	req.NoError(err)

	count, err := repository.MarkIncomingReadUntil(alice, bob, listed[0].CreatedAt)
	req.NoError(err)
	req.Equal(2, count)

	// Then only the listed messages are read
	messages, err := repository.ListConversation(alice, bob)
	req.NoError(err)
	for _, m := range messages {
		req.Equal(m.ID != late.ID, m.Read, m.Content)
	}
}

func Test_MarkRead_Single_Message(t *testing.T) {
	req := require.New(t)
	repository := newMessageRepository(t)

	first, err := repository.Create("alice", "bob", "first")
	req.NoError(err)
	second, err := repository.Create("alice", "bob", "second")
	req.NoError(err)

	updated, changed, err := repository.MarkRead(first.ID)
	req.NoError(err)
	req.True(changed)
	req.True(updated.Read)
	req.Equal(first.CreatedAt, updated.CreatedAt)

	_, changed, err = repository.MarkRead(first.ID)
	req.NoError(err)
	req.False(changed)

	stillUnread, err := repository.GetByID(second.ID)
	req.NoError(err)
	req.False(stillUnread.Read)
}

func Test_Unknown_Message_Is_Not_Found(t *testing.T) {
	req := require.New(t)
	repository := newMessageRepository(t)

	_, err := repository.GetByID(uuid.New())
	req.ErrorIs(err, errors.ErrNotFound)

	_, _, err = repository.MarkRead(uuid.New())
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Concurrent_Create_Keeps_Every_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = repository.Create("alice", "bob", "ping")
		}()
		go func() {
			defer wg.Done()
			_, _ = repository.Create("bob", "alice", "pong")
		}()
	}
	wg.Wait()

	messages, err := repository.ListConversation("alice", "bob")
	req.NoError(err)
	req.Len(messages, 40)
	for i := 1; i < len(messages); i++ {
		req.False(messages[i].CreatedAt.After(messages[i-1].CreatedAt))
	}
}
