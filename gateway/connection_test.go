package gateway

import (
	"chatter-box/auth"
	"chatter-box/domain/event"
	"chatter-box/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func detachedConnection(bufferSize int) *Connection {
	cfg := DefaultConfig()
	cfg.BufferSize = bufferSize
	return newConnection(nil, auth.Identity{UserID: "alice"}, cfg,
		logs.GetLoggerFromLevel(slog.LevelError), observability.NewMetrics())
}

func TestConnection_StateTransitions(t *testing.T) {
	req := require.New(t)
	c := detachedConnection(1)

	req.Equal(StateAuthenticated, c.State())
	req.True(c.activate())
	req.Equal(StateActive, c.State())
	req.False(c.activate())

	c.Close()
	c.Close()
	req.Equal(StateClosed, c.State())
	req.Equal("closed", c.State().String())
}

func TestConnection_PushToClosedConnectionIsIgnored(t *testing.T) {
	req := require.New(t)
	c := detachedConnection(1)
	c.Close()

	err := c.Consume(context.Background(), event.TypingChanged{From: "bob", Typing: true})
	req.NoError(err)
	req.Empty(c.egress)
}

func TestConnection_SlowConsumerDropsPush(t *testing.T) {
	req := require.New(t)
	c := detachedConnection(1)
	c.activate()

	req.NoError(c.Consume(context.Background(), event.TypingChanged{From: "bob", Typing: true}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Consume(ctx, event.TypingChanged{From: "bob", Typing: false})
	req.ErrorIs(err, context.DeadlineExceeded)
	req.Len(c.egress, 1)
}

func TestEncodeEvent(t *testing.T) {
	req := require.New(t)

	env, err := encodeEvent(event.OnlineUsersChanged{})
	req.NoError(err)
	req.Equal(TypeOnlineUsers, env.Type)
	req.JSONEq(`[]`, string(env.Payload))

	env, err = encodeEvent(event.TypingChanged{From: "bob", Typing: true})
	req.NoError(err)
	req.JSONEq(`{"from":"bob","typing":true}`, string(env.Payload))

	_, err = encodeEvent(event.PresenceChanged{UserID: "bob"})
	req.Error(err)
}
