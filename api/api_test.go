package api

import (
	"bytes"
	"chatter-box/auth"
	"chatter-box/domain"
	"chatter-box/observability"
	"chatter-box/repositories"
	"chatter-box/services"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router   http.Handler
	tokens   *auth.JWTManager
	users    *repositories.UserRepository
	messages *repositories.MessageRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelError)
	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, log)
	tokens := auth.NewJWTManager("api-secret", time.Hour)
	server := NewServer(log,
		services.NewConversationService(log, messages, users),
		services.NewAuthService(users, tokens),
		tokens,
		observability.NewMetrics(),
	)
	return &fixture{router: server.Router(nil), tokens: tokens, users: users, messages: messages}
}

func (f *fixture) user(t *testing.T, name string) (domain.UserID, string) {
	t.Helper()
	u, err := f.users.CreateUser(name, name+"@example.com", "unused")
	require.NoError(t, err)
	token, err := f.tokens.GenerateToken(u.ID, u.Username)
	require.NoError(t, err)
	return u.ID, token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(method, path, reader)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChatRoutes_RequireIdentity(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	for _, path := range []string{"/chat/users", "/chat/messages/someone"} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		req.Equal(http.StatusUnauthorized, rec.Code)
		req.NotEmpty(decodeJSON[errorResponse](t, rec).Error)

		rec = f.do(t, http.MethodGet, path, "forged.token.value", nil)
		req.Equal(http.StatusUnauthorized, rec.Code)
	}
}

func TestListUsers_AloneIsAnEmptyList(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, token := f.user(t, "alice")

	rec := f.do(t, http.MethodGet, "/chat/users", token, nil)

	req.Equal(http.StatusOK, rec.Code)
	req.JSONEq(`{"message":"No users found","users":[]}`, rec.Body.String())
}

func TestListUsers_SummariesOrderedByLastMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, token := f.user(t, "alice")
	bob, _ := f.user(t, "bob")
	carol, _ := f.user(t, "carol")
	_, _ = f.user(t, "dave")

	_, err := f.messages.Create(bob, alice, "first")
	req.NoError(err)
	_, err = f.messages.Create(bob, alice, "second")
	req.NoError(err)
	time.Sleep(time.Millisecond)
	_, err = f.messages.Create(alice, carol, "latest")
	req.NoError(err)

	rec := f.do(t, http.MethodGet, "/chat/users", token, nil)
	req.Equal(http.StatusOK, rec.Code)
	body := decodeJSON[usersResponse](t, rec)

	req.Len(body.Users, 3)
	req.Equal(string(carol), body.Users[0].PeerID)
	req.Equal("latest", body.Users[0].LastMessage.Content)
	req.Zero(body.Users[0].UnreadCount)

	req.Equal(string(bob), body.Users[1].PeerID)
	req.Equal(2, body.Users[1].UnreadCount)
	req.Equal("bob@example.com", body.Users[1].Email)

	req.Equal("dave", body.Users[2].Username)
	req.Nil(body.Users[2].LastMessage)
	req.NotContains(rec.Body.String(), `"peerId":"`+string(alice)+`"`)
}

func TestListMessages_ReturnsHistoryThenMarksRead(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, _ := f.user(t, "alice")
	bob, bobToken := f.user(t, "bob")

	sent, err := f.messages.Create(alice, bob, "hi")
	req.NoError(err)
	_, err = f.messages.Create(bob, alice, "hey")
	req.NoError(err)

	rec := f.do(t, http.MethodGet, "/chat/messages/"+string(alice), bobToken, nil)
	req.Equal(http.StatusOK, rec.Code)
	body := decodeJSON[messagesResponse](t, rec)
	req.Len(body.Messages, 2)
	req.Equal("hey", body.Messages[0].Content)
	req.Equal(sent.ID.String(), body.Messages[1].ID)
	// State at read time: the message was still unread
	req.False(body.Messages[1].Read)

	stored, err := f.messages.GetByID(sent.ID)
	req.NoError(err)
	req.True(stored.Read)

	// bob's own message stays unread until alice opens the conversation
	again := decodeJSON[messagesResponse](t, f.do(t, http.MethodGet, "/chat/messages/"+string(alice), bobToken, nil))
	req.True(again.Messages[1].Read)
	req.False(again.Messages[0].Read)
}

func TestListMessages_NoHistory(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, token := f.user(t, "alice")
	bob, _ := f.user(t, "bob")

	rec := f.do(t, http.MethodGet, "/chat/messages/"+string(bob), token, nil)

	req.Equal(http.StatusOK, rec.Code)
	req.JSONEq(`{"message":"No messages found","messages":[]}`, rec.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/register", "", registerRequest{
		Username: "alice", Email: "alice@example.com", Password: "ComplexPass123!",
	})
	req.Equal(http.StatusCreated, rec.Code)
	registered := decodeJSON[sessionResponse](t, rec)
	req.Equal("alice", registered.User.Username)

	identity, err := f.tokens.Verify(registered.Token)
	req.NoError(err)
	req.Equal(domain.UserID(registered.User.ID), identity.UserID)

	rec = f.do(t, http.MethodPost, "/auth/register", "", registerRequest{
		Username: "alice2", Email: "alice@example.com", Password: "ComplexPass123!",
	})
	req.Equal(http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "alice@example.com", Password: "ComplexPass123!"})
	req.Equal(http.StatusOK, rec.Code)
	req.Equal(registered.User.ID, decodeJSON[sessionResponse](t, rec).User.ID)

	rec = f.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "alice@example.com", Password: "WrongPass123!"})
	req.Equal(http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "Alice", Password: "ComplexPass123!"})
	req.Equal(http.StatusOK, rec.Code)
	req.Equal(registered.User.ID, decodeJSON[sessionResponse](t, rec).User.ID)

	// The issued token opens the chat routes
	rec = f.do(t, http.MethodGet, "/chat/users", registered.Token, nil)
	req.Equal(http.StatusOK, rec.Code)
}

func TestRegister_Rejections(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/register", "", registerRequest{Username: "bob", Email: "bob@example.com", Password: "short"})
	req.Equal(http.StatusBadRequest, rec.Code)

	r := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{nope"))
	raw := httptest.NewRecorder()
	f.router.ServeHTTP(raw, r)
	req.Equal(http.StatusBadRequest, raw.Code)
}

func TestOperationalRoutes(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	req.Equal(http.StatusOK, rec.Code)

	_ = f.do(t, http.MethodGet, "/chat/users", "", nil)
	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), `chatter_box_http_requests_total{code="401",route="/chat/users"} 1`)

	rec = f.do(t, http.MethodGet, "/nowhere", "", nil)
	req.Equal(http.StatusNotFound, rec.Code)
	req.Equal("not found", decodeJSON[errorResponse](t, rec).Error)
}

func TestAuthRoutes_RateLimited(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	limited := NewServer(logs.GetLoggerFromLevel(slog.LevelError), nil,
		services.NewAuthService(f.users, f.tokens), f.tokens, observability.NewMetrics()).
		WithAuthRateLimit(0.001, 2)
	router := limited.Router(nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/auth/login",
			bytes.NewBufferString(`{"email":"nobody@example.com","password":"Whatever123!"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	req.Equal([]int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}
