package auth

import (
	"chatter-box/errors"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type contextKey string

const identityKey contextKey = "identity"

// WebSocketProtocolPrefix lets browsers pass the token through Sec-WebSocket-Protocol,
// the only header they can set on a WebSocket handshake.
const WebSocketProtocolPrefix = "bearer."

// BearerToken extracts the credential from the Authorization header, then from the
// token query parameter, then from a bearer.<token> WebSocket sub protocol.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	for _, protocol := range websocketProtocols(r) {
		if strings.HasPrefix(protocol, WebSocketProtocolPrefix) {
			return strings.TrimPrefix(protocol, WebSocketProtocolPrefix)
		}
	}
	return ""
}

func websocketProtocols(r *http.Request) []string {
	var protocols []string
	for _, h := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(h, ",") {
			if p = strings.TrimSpace(p); p != "" {
				protocols = append(protocols, p)
			}
		}
	}
	return protocols
}

// WithIdentity injects the verified identity into the context for downstream layers.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// RequireIdentity rejects requests without a valid bearer credential
// before any handler logic runs.
func RequireIdentity(verifier IdentityVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(BearerToken(r))
			if err != nil {
				log.Debug("Rejected unauthenticated request", "path", r.URL.Path, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": errors.ErrUnauthorized.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
