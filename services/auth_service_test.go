package services

import (
	"chatter-box/auth"
	"chatter-box/domain"
	"chatter-box/errors"
	"chatter-box/mocks"
	"chatter-box/repositories"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSecret = "test-secret"

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewJWTManager(testSecret, 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		password := "ComplexPass123!"

		// The repository receives a hash, never the plain password
		mockRepo.EXPECT().
			CreateUser("alice", "alice@example.com", gomock.Not(password)).
			Return(repositories.User{ID: "user-uuid", Username: "alice", Email: "alice@example.com"}, nil).
			Times(1)

		session, err := svc.Register("alice", "alice@example.com", password)

		req.NoError(err)
		req.Equal(domain.UserID("user-uuid"), session.User.ID)
		identity, err := tokens.Verify(string(session.Token))
		req.NoError(err)
		req.Equal(auth.Identity{UserID: "user-uuid", Username: "alice"}, identity)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		session, err := svc.Register("alice", "alice@example.com", "simplepassword")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(session.Token)
	})

	t.Run("should fail when email is malformed", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Register("alice", "not-an-email", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("bob", "duplicate@example.com", gomock.Any()).
			Return(repositories.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register("bob", "duplicate@example.com", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewJWTManager(testSecret, 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"
		password := "Secret123456!"

		hashedPassword, err := auth.HashPassword(password)
		req.NoError(err)
		storedUser := repositories.User{
			ID:           "uuid-123",
			Username:     "user",
			Email:        email,
			PasswordHash: hashedPassword,
		}

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(storedUser, nil).
			Times(1)

		session, err := svc.Login(email, password)
		req.NoError(err)
		req.Equal("user", session.User.Username)

		identity, err := tokens.Verify(string(session.Token))
		req.NoError(err)
		req.Equal(storedUser.ID, identity.UserID)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"

		hashedPassword, err := auth.HashPassword("CorrectPassword123!")
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(repositories.User{Email: email, PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err = svc.Login(email, "WrongPassword123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail("unknown@example.com").
			Return(repositories.User{}, errors.ErrNotFound).
			Times(1)

		_, err := svc.Login("unknown@example.com", "anyPassword")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should login with a username instead of an email", func(t *testing.T) {
		req := require.New(t)
		password := "Secret123456!"

		hashedPassword, err := auth.HashPassword(password)
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByUsername("user").
			Return(repositories.User{ID: "uuid-123", Username: "user", PasswordHash: hashedPassword}, nil).
			Times(1)

		session, err := svc.Login("user", password)
		req.NoError(err)
		req.Equal(domain.UserID("uuid-123"), session.User.ID)
	})

	t.Run("should return invalid credentials when username is unknown", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("ghost").
			Return(repositories.User{}, errors.ErrNotFound).
			Times(1)

		_, err := svc.Login("ghost", "anyPassword")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should not mask storage failures as bad credentials", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("user").
			Return(repositories.User{}, errors.ErrStorage).
			Times(1)

		_, err := svc.Login("user", "anyPassword")

		req.ErrorIs(err, errors.ErrStorage)
	})
}
