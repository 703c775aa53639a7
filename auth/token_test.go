package auth

import (
	"chatter-box/domain"
	"chatter-box/errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	req := require.New(t)
	manager := NewJWTManager("test-secret-which-is-long-enough", time.Hour)

	token, err := manager.GenerateToken("user-123", "alice")
	req.NoError(err)

	identity, err := manager.Verify(token)
	req.NoError(err)
	req.Equal(domain.UserID("user-123"), identity.UserID)
	req.Equal("alice", identity.Username)
}

func TestJWTManager_Verify_Rejects(t *testing.T) {
	manager := NewJWTManager("test-secret-which-is-long-enough", time.Hour)

	t.Run("should reject an empty token", func(t *testing.T) {
		_, err := manager.Verify("")
		require.ErrorIs(t, err, errors.ErrUnauthorized)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := manager.Verify("invalid-token-string")
		require.ErrorIs(t, err, errors.ErrUnauthorized)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		other := NewJWTManager("another-secret-which-is-long-enough", time.Hour)
		token, err := other.GenerateToken("user-123", "alice")
		require.NoError(t, err)

		_, err = manager.Verify(token)
		require.ErrorIs(t, err, errors.ErrUnauthorized)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		expired := NewJWTManager("test-secret-which-is-long-enough", time.Minute)
		expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := expired.GenerateToken("user-123", "alice")
		require.NoError(t, err)

		_, err = manager.Verify(token)
		require.ErrorIs(t, err, errors.ErrUnauthorized)
	})

	t.Run("should reject the none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &CustomClaims{UserID: "user-123"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = manager.Verify(signed)
		require.ErrorIs(t, err, errors.ErrUnauthorized)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
	}{
		{"Authorization header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc"},
		{"Lower case scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") }, "abc"},
		{"Wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, ""},
		{"Query parameter", func(r *http.Request) { r.URL.RawQuery = "token=xyz" }, "xyz"},
		{"WebSocket protocol", func(r *http.Request) { r.Header.Set("Sec-WebSocket-Protocol", "chat, bearer.proto") }, "proto"},
		{"Nothing", func(r *http.Request) {}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.setup(r)
			require.Equal(t, tt.expected, BearerToken(r))
		})
	}
}

func TestRequireIdentity(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	manager := NewJWTManager("test-secret-which-is-long-enough", time.Hour)

	var seen Identity
	reached := false
	handler := RequireIdentity(manager, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("should answer 401 without reaching the handler", func(t *testing.T) {
		reached = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/users", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.False(t, reached)
	})

	t.Run("should inject the identity when the token is valid", func(t *testing.T) {
		token, err := manager.GenerateToken("user-123", "alice")
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/chat/users", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.True(t, reached)
		require.Equal(t, domain.UserID("user-123"), seen.UserID)
	})
}
