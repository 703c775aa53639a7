package services

import (
	"chatter-box/auth"
	"chatter-box/domain"
	"chatter-box/errors"
	"chatter-box/repositories"
	"fmt"
	"strings"
)

type IAuthService interface {
	Login(login, password string) (Session, error)
	Register(username, email, password string) (Session, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.JWTManager
}

type Token string

// Session is what a successful register or login hands back to the client.
type Session struct {
	Token Token
	User  domain.User
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.JWTManager) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, email, password string) (Session, error) {
	// Validate business rules before any expensive cryptographic operation
	if err := auth.ValidateRegister(auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}); err != nil {
		return Session{}, err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(username, email, hashedPassword)
	if err != nil {
		return Session{}, err // ErrUserAlreadyExists when username or email is taken
	}

	return s.issue(user)
}

// Login authenticates by email when login contains an @, by username otherwise.
// Usernames are alphanumeric so the two never overlap.
func (s *AuthService) Login(login, password string) (Session, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Login: login, Password: password}); err != nil {
		return Session{}, errors.ErrInvalidCredentials
	}

	user, err := s.lookup(login)
	if errors.Is(err, errors.ErrNotFound) {
		// Generic error to prevent user enumeration attacks
		return Session{}, errors.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *AuthService) lookup(login string) (repositories.User, error) {
	if strings.Contains(login, "@") {
		return s.userRepository.GetUserByEmail(login)
	}
	return s.userRepository.GetUserByUsername(login)
}

func (s *AuthService) issue(user repositories.User) (Session, error) {
	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: Token(token), User: user.ToDomain()}, nil
}
