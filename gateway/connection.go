package gateway

import (
	"chatter-box/auth"
	"chatter-box/domain/event"
	"chatter-box/observability"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State of a live connection. It only moves forward.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// Connection is one authenticated WebSocket.
// It implements contract.EventSink so the registry and the fanout can push to it.
type Connection struct {
	id       uuid.UUID
	identity auth.Identity
	conn     *websocket.Conn
	cfg      Config
	log      *slog.Logger
	metrics  *observability.Metrics

	egress    chan Envelope
	state     atomic.Int32
	closed    chan struct{}
	closeOnce sync.Once
}

func newConnection(conn *websocket.Conn, identity auth.Identity, cfg Config,
	log *slog.Logger, metrics *observability.Metrics) *Connection {
	c := &Connection{
		id:       uuid.New(),
		identity: identity,
		conn:     conn,
		cfg:      cfg,
		metrics:  metrics,
		egress:   make(chan Envelope, cfg.BufferSize),
		closed:   make(chan struct{}),
	}
	c.log = log.With("connection_id", c.id, "user_id", identity.UserID)
	c.state.Store(int32(StateAuthenticated))
	return c
}

func (c *Connection) ID() uuid.UUID { return c.id }

func (c *Connection) Identity() auth.Identity { return c.identity }

func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) activate() bool {
	return c.state.CompareAndSwap(int32(StateAuthenticated), int32(StateActive))
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Consume pushes a domain event. Pushing to a closed connection is a no-op.
func (c *Connection) Consume(ctx context.Context, e event.DomainEvent) error {
	env, err := encodeEvent(e)
	if err != nil {
		return err
	}
	return c.send(ctx, env)
}

// send queues an envelope for the write loop.
// It gives up when ctx expires, the push is then dropped.
func (c *Connection) send(ctx context.Context, env Envelope) error {
	if c.State() == StateClosed {
		return nil
	}
	select {
	case c.egress <- env:
		return nil
	case <-c.closed:
		return nil
	case <-ctx.Done():
		c.metrics.IncrPushDropped()
		c.log.Debug("Push dropped, connection too slow", "type", env.Type)
		return ctx.Err()
	}
}

// Close moves the connection to Closed. Safe to call many times.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.closed)
	})
}

// readPump decodes inbound frames and hands them to handle one at a time,
// events of a connection are processed in the order they arrived.
func (c *Connection) readPump(handle func(Envelope)) {
	defer c.Close()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("Unexpected close", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.metrics.IncrEventError("malformed")
			c.reply(TypeError, "", ErrorPayload{Error: "malformed event"})
			continue
		}
		handle(env)
	}
}

// writePump is the only writer of the socket.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return
		case env := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.log.Debug("Write failed, closing connection", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// reply answers the connection itself, acks and error events go through here.
func (c *Connection) reply(eventType, id string, payload any) {
	env, err := newEnvelope(eventType, id, payload)
	if err != nil {
		c.log.Error("Unable to encode reply", "type", eventType, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DeliveryTimeout)
	defer cancel()
	_ = c.send(ctx, env)
}
