package gateway

import (
	"chatter-box/auth"
	"chatter-box/contract"
	"chatter-box/domain"
	"chatter-box/domain/event"
	"chatter-box/errors"
	"chatter-box/observability"
	"chatter-box/services"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type Config struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
	BufferSize      int
	DeliveryTimeout time.Duration
	// AllowedOrigins empty means every origin is accepted.
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageSize:  64 * 1024,
		BufferSize:      256,
		DeliveryTimeout: 2 * time.Second,
	}
}

// Gateway owns the live connections: handshake, presence bookkeeping and
// the send-message, mark-read and typing protocol.
type Gateway struct {
	log      *slog.Logger
	cfg      Config
	verifier auth.IdentityVerifier
	registry contract.IPresenceRegistry
	notifier contract.PresenceNotifier
	chat     services.IChatService
	metrics  *observability.Metrics

	mu       sync.Mutex
	conns    map[*Connection]struct{}
	shutdown bool
	wg       sync.WaitGroup
}

func New(log *slog.Logger, cfg Config, verifier auth.IdentityVerifier, registry contract.IPresenceRegistry,
	notifier contract.PresenceNotifier, chat services.IChatService, metrics *observability.Metrics) *Gateway {
	return &Gateway{
		log:      log,
		cfg:      cfg,
		verifier: verifier,
		registry: registry,
		notifier: notifier,
		chat:     chat,
		metrics:  metrics,
		conns:    make(map[*Connection]struct{}),
	}
}

// ServeHTTP authenticates the handshake before upgrading it.
// A missing or invalid credential is answered with 401 and no connection is created.
// Once Shutdown has started handshakes are refused with 503.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if g.closing() {
		writeHandshakeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	identity, err := g.verifier.Verify(auth.BearerToken(r))
	if err != nil {
		g.log.Debug("Handshake rejected", "remote", r.RemoteAddr, "error", err)
		writeHandshakeError(w, http.StatusUnauthorized, errors.ErrUnauthorized.Error())
		return
	}

	ws, err := g.upgrader(r).Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("Upgrade failed", "error", err)
		return
	}

	c := newConnection(ws, identity, g.cfg, g.log, g.metrics)
	if !g.track(c) {
		g.log.Debug("Upgrade raced with shutdown", "user_id", identity.UserID)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(g.cfg.WriteWait))
		_ = ws.Close()
		return
	}
	g.open(c)

	go func() {
		defer g.wg.Done()
		c.writePump()
	}()
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-c.Done()
			cancel()
		}()
		c.readPump(func(env Envelope) { g.dispatch(ctx, c, env) })
		g.close(c)
	}()
}

func (g *Gateway) upgrader(r *http.Request) *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	// Browsers need the bearer sub protocol echoed back to accept the upgrade.
	for _, protocol := range websocket.Subprotocols(r) {
		if strings.HasPrefix(protocol, auth.WebSocketProtocolPrefix) {
			u.Subprotocols = []string{protocol}
			break
		}
	}
	return u
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(g.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

func writeHandshakeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorPayload{Error: msg})
}

func (g *Gateway) closing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shutdown
}

// track admits c and reserves its two loops in wg, unless Shutdown already started.
// Doing both under mu keeps wg.Add ordered before Shutdown's wg.Wait.
func (g *Gateway) track(c *Connection) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.shutdown {
		return false
	}
	g.conns[c] = struct{}{}
	g.wg.Add(2)
	return true
}

func (g *Gateway) untrack(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, c)
}

func (g *Gateway) open(c *Connection) {
	userID := c.Identity().UserID
	g.registry.Register(userID, c)
	c.activate()
	g.metrics.ConnectionOpened()
	g.notifier.Notify(event.PresenceChanged{UserID: userID, Online: true, At: time.Now().UTC()})
	g.log.Info("Connection opened", "connection_id", c.ID(), "user_id", userID)
}

// Sinks returns every active connection, replaced ones included.
// Presence broadcasts go through it so a user's older tab still sees who is online.
func (g *Gateway) Sinks() []contract.EventSink {
	g.mu.Lock()
	defer g.mu.Unlock()
	sinks := make([]contract.EventSink, 0, len(g.conns))
	for c := range g.conns {
		if c.State() == StateActive {
			sinks = append(sinks, c)
		}
	}
	return sinks
}

// close is idempotent on the registry side: a connection replaced by a newer
// one of the same user leaves the registry untouched.
func (g *Gateway) close(c *Connection) {
	c.Close()
	g.untrack(c)
	g.metrics.ConnectionClosed()
	userID := c.Identity().UserID
	if g.registry.UnregisterSink(userID, c) {
		g.notifier.Notify(event.PresenceChanged{UserID: userID, Online: false, At: time.Now().UTC()})
	}
	g.log.Info("Connection closed", "connection_id", c.ID(), "user_id", userID)
}

// Shutdown refuses new handshakes, closes every live connection and waits for
// their loops to end.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.shutdown = true
	conns := lo.Keys(g.conns)
	g.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch runs one inbound event. Nothing raised by a handler escapes it.
func (g *Gateway) dispatch(ctx context.Context, c *Connection, env Envelope) {
	g.metrics.IncrEventReceived(env.Type)
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("Event handler panicked", "type", env.Type, "user_id", c.Identity().UserID, "panic", r)
			g.metrics.IncrEventError(env.Type)
			c.reply(TypeError, env.ID, ErrorPayload{Error: "internal error"})
		}
	}()

	switch env.Type {
	case TypeSendMessage:
		g.handleSendMessage(ctx, c, env)
	case TypeMarkRead:
		g.handleMarkRead(ctx, c, env)
	case TypeTyping:
		g.handleTyping(ctx, c, env)
	default:
		g.metrics.IncrEventError(env.Type)
		c.reply(TypeError, env.ID, ErrorPayload{Error: fmt.Sprintf("unknown event type %q", env.Type)})
	}
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Connection, env Envelope) {
	var payload SendMessagePayload
	if err := decodePayload(env, &payload); err != nil {
		g.metrics.IncrEventError(env.Type)
		c.reply(TypeSendMessageAck, env.ID, SendMessageAck{Status: AckStatusError, Error: errors.PublicMessage(err)})
		return
	}

	message, err := g.chat.SendMessage(ctx, domain.SendMessageCommand{
		Sender: c.Identity().UserID,
		To:     domain.UserID(payload.To),
		Text:   payload.Text,
	})
	if err != nil {
		g.metrics.IncrEventError(env.Type)
		g.logFailure("Send message failed", c, err)
		c.reply(TypeSendMessageAck, env.ID, SendMessageAck{Status: AckStatusError, Error: errors.PublicMessage(err)})
		return
	}
	g.metrics.IncrMessageSent()

	dto := contract.ToMessageDTO(message)
	c.reply(TypeSendMessageAck, env.ID, SendMessageAck{Status: AckStatusOK, Message: &dto})
	g.push(ctx, message.Receiver, event.MessageReceived{Message: message})
}

func (g *Gateway) handleMarkRead(ctx context.Context, c *Connection, env Envelope) {
	var payload MarkReadPayload
	if err := decodePayload(env, &payload); err != nil {
		g.replyError(c, env, err)
		return
	}
	messageID, err := uuid.Parse(payload.MessageID)
	if err != nil {
		g.replyError(c, env, fmt.Errorf("%w: invalid messageId", errors.ErrValidation))
		return
	}

	receipt, err := g.chat.MarkRead(ctx, domain.MarkReadCommand{
		Reader:    c.Identity().UserID,
		MessageID: messageID,
		From:      domain.UserID(payload.From),
		To:        domain.UserID(payload.To),
	})
	if err != nil {
		g.logFailure("Mark read failed", c, err)
		g.replyError(c, env, err)
		return
	}
	g.metrics.IncrReadReceipt()

	c.reply(TypeMarkReadAck, env.ID, MarkReadAck{MessageID: messageID.String(), Read: true})
	g.push(ctx, receipt.Message.Sender, event.MessageRead{
		MessageID: messageID,
		By:        c.Identity().UserID,
		At:        receipt.At,
	})
}

// handleTyping is best effort: bad payloads and unreachable peers are ignored.
func (g *Gateway) handleTyping(ctx context.Context, c *Connection, env Envelope) {
	var payload TypingPayload
	if err := decodePayload(env, &payload); err != nil || payload.To == "" {
		return
	}
	to := domain.UserID(payload.To)
	if to == c.Identity().UserID {
		return
	}
	g.push(ctx, to, event.TypingChanged{From: c.Identity().UserID, Typing: payload.Typing, At: time.Now().UTC()})
}

// push delivers e to userID when they are online. Offline users are not an error.
func (g *Gateway) push(ctx context.Context, userID domain.UserID, e event.DomainEvent) {
	sink, ok := g.registry.Lookup(userID)
	if !ok {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, g.cfg.DeliveryTimeout)
	defer cancel()
	if err := sink.Consume(pushCtx, e); err != nil {
		g.log.Debug("Push not delivered", "type", e.Name(), "user_id", userID, "error", err)
	}
}

func (g *Gateway) replyError(c *Connection, env Envelope, err error) {
	g.metrics.IncrEventError(env.Type)
	c.reply(TypeError, env.ID, ErrorPayload{Error: errors.PublicMessage(err)})
}

func (g *Gateway) logFailure(msg string, c *Connection, err error) {
	if errors.HTTPStatus(err) == http.StatusInternalServerError {
		g.log.Error(msg, "user_id", c.Identity().UserID, "error", err)
		return
	}
	g.log.Debug(msg, "user_id", c.Identity().UserID, "error", err)
}

func decodePayload(env Envelope, target any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: missing payload", errors.ErrValidation)
	}
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return fmt.Errorf("%w: malformed payload", errors.ErrValidation)
	}
	return nil
}
