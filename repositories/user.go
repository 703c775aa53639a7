//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chatter-box/domain"
	"chatter-box/errors"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IUserRepository interface {
	CreateUser(username, email, hashedPassword string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByUsername(username string) (User, error)
	GetUserByID(id domain.UserID) (User, error)
	ListUsers() ([]domain.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// User is the repository representation of an account, password hash included.
type User struct {
	ID           domain.UserID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

func (u User) ToDomain() domain.User {
	return domain.User{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

type diskUser struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

const userPrefix = "user:"

// CreateUser persists the account under "user:{id}" and reserves the username and
// email through "user_name:" and "user_email:" index keys in the same transaction.
// Both are compared case insensitively.
// Concurrent registrations of the same name conflict in Badger, the retry then
// finds the winner's index key and reports ErrUserAlreadyExists.
func (u UserRepository) CreateUser(username, email, hashedPassword string) (User, error) {
	user := User{
		ID:           domain.UserID(uuid.NewString()),
		Username:     strings.TrimSpace(username),
		Email:        normalizeEmail(email),
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	data, err := json.Marshal(fromUser(user))
	if err != nil {
		return User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.update(func(txn *badger.Txn) error {
		nameKey := usernameKey(user.Username)
		mailKey := emailKey(user.Email)
		for _, key := range [][]byte{nameKey, mailKey} {
			if _, err := txn.Get(key); err == nil {
				return errors.ErrUserAlreadyExists
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		if err := txn.Set(nameKey, []byte(user.ID)); err != nil {
			return err
		}
		if err := txn.Set(mailKey, []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
	switch {
	case errors.Is(err, errors.ErrUserAlreadyExists):
		return User{}, err
	case err != nil:
		return User{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return user, nil
}

// GetUserByEmail follows the email index to the account.
func (u UserRepository) GetUserByEmail(email string) (User, error) {
	return u.getByIndex(emailKey(normalizeEmail(email)))
}

// GetUserByUsername follows the username index, case insensitively.
func (u UserRepository) GetUserByUsername(username string) (User, error) {
	return u.getByIndex(usernameKey(strings.TrimSpace(username)))
}

func (u UserRepository) getByIndex(key []byte) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, domain.UserID(id))
		return err
	})
	if err != nil {
		return User{}, wrapUserError(err)
	}
	return user, nil
}

func (u UserRepository) GetUserByID(id domain.UserID) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	if err != nil {
		return User{}, wrapUserError(err)
	}
	return user, nil
}

// ListUsers returns every known account without credentials, ordered by id.
func (u UserRepository) ListUsers() ([]domain.User, error) {
	var users []User
	err := u.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(userPrefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			user, err := decodeUser(it.Item())
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return lo.Map(users, func(item User, _ int) domain.User { return item.ToDomain() }), nil
}

func (u UserRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = u.db.Update(fn); !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getUser(txn *badger.Txn, id domain.UserID) (User, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return User{}, err
	}
	return decodeUser(item)
}

func decodeUser(item *badger.Item) (User, error) {
	var disk diskUser
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &disk)
	}); err != nil {
		return User{}, err
	}
	return toUser(disk), nil
}

func wrapUserError(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: user", errors.ErrNotFound)
	}
	return fmt.Errorf("%w: %v", errors.ErrStorage, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userKey(id domain.UserID) []byte { return []byte(userPrefix + string(id)) }

func usernameKey(username string) []byte {
	return []byte("user_name:" + strings.ToLower(username))
}

func emailKey(email string) []byte { return []byte("user_email:" + email) }

func fromUser(user User) diskUser {
	return diskUser{
		ID:           string(user.ID),
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.Unix(),
	}
}

func toUser(disk diskUser) User {
	return User{
		ID:           domain.UserID(disk.ID),
		Username:     disk.Username,
		Email:        disk.Email,
		PasswordHash: disk.PasswordHash,
		CreatedAt:    time.Unix(disk.CreatedAt, 0).UTC(),
	}
}
