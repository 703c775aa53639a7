package api

import (
	"bufio"
	"chatter-box/auth"
	"chatter-box/observability"
	"chatter-box/services"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"
)

// Server is the request/response surface for clients that are not live,
// plus the WebSocket handshake and the operational endpoints.
type Server struct {
	log           *slog.Logger
	conversations services.IConversationService
	accounts      services.IAuthService
	verifier      auth.IdentityVerifier
	metrics       *observability.Metrics
	authLimiter   *limiterPool
}

func NewServer(log *slog.Logger, conversations services.IConversationService, accounts services.IAuthService,
	verifier auth.IdentityVerifier, metrics *observability.Metrics) *Server {
	return &Server{log: log, conversations: conversations, accounts: accounts, verifier: verifier, metrics: metrics}
}

// WithAuthRateLimit throttles register and login per client address.
// A non positive rps disables it.
func (s *Server) WithAuthRateLimit(rps float64, burst int) *Server {
	if rps > 0 {
		s.authLimiter = newLimiterPool(rps, burst)
	}
	return s
}

// Router mounts every route. live serves GET /ws and may be nil.
func (s *Server) Router(live http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	accounts := r.PathPrefix("/auth").Subrouter()
	if s.authLimiter != nil {
		accounts.Use(s.authLimiter.limit)
	}
	accounts.HandleFunc("/register", s.register).Methods(http.MethodPost)
	accounts.HandleFunc("/login", s.login).Methods(http.MethodPost)

	chat := r.PathPrefix("/chat").Subrouter()
	chat.Use(auth.RequireIdentity(s.verifier, s.log))
	chat.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	chat.HandleFunc("/messages/{peerId}", s.listMessages).Methods(http.MethodGet)

	if live != nil {
		r.Handle("/ws", live).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the WebSocket upgrader reach the hijacker.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// observe counts requests by route template so path parameters don't explode the label set.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		s.metrics.ObserveRequest(route, rec.status)
	})
}
