package api

import (
	"chatter-box/auth"
	"chatter-box/contract"
	"chatter-box/domain"
	"chatter-box/errors"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type usersResponse struct {
	Message string                    `json:"message"`
	Users   []contract.UserSummaryDTO `json:"users"`
}

type messagesResponse struct {
	Message  string                `json:"message"`
	Messages []contract.MessageDTO `json:"messages"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest takes email or username, email wins when both are set.
type loginRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

type userDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type sessionResponse struct {
	Message string  `json:"message"`
	Token   string  `json:"token"`
	User    userDTO `json:"user"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	summaries, err := s.conversations.Summarize(r.Context(), identity.UserID)
	switch {
	case errors.Is(err, errors.ErrNoPeers):
		writeJSON(w, http.StatusOK, usersResponse{Message: "No users found", Users: []contract.UserSummaryDTO{}})
		return
	case err != nil:
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, usersResponse{
		Message: "Users fetched successfully",
		Users:   lo.Map(summaries, func(summary domain.ConversationSummary, _ int) contract.UserSummaryDTO {
			return contract.ToUserSummaryDTO(summary)
		}),
	})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	peer := domain.UserID(mux.Vars(r)["peerId"])

	messages, err := s.conversations.History(r.Context(), identity.UserID, peer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(messages) == 0 {
		writeJSON(w, http.StatusOK, messagesResponse{Message: "No messages found", Messages: []contract.MessageDTO{}})
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{
		Message:  "Messages fetched successfully",
		Messages: contract.ToMessageDTOs(messages),
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.accounts.Register(body.Username, body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("User registered", "user_id", session.User.ID, "username", session.User.Username)
	writeJSON(w, http.StatusCreated, sessionResponse{
		Message: "User created successfully",
		Token:   string(session.Token),
		User:    toUserDTO(session.User),
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.accounts.Login(lo.CoalesceOrEmpty(body.Email, body.Username), body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Message: "Logged in successfully",
		Token:   string(session.Token),
		User:    toUserDTO(session.User),
	})
}

func toUserDTO(u domain.User) userDTO {
	return userDTO{ID: string(u.ID), Username: u.Username, Email: u.Email}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("%w: malformed request body", errors.ErrValidation)
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "path", r.URL.Path, "error", err)
	} else {
		s.log.Debug("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errors.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
