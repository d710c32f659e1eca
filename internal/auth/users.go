package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrUserExists is returned when registering an id that is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUnknownUser is returned when a user id has no account.
	ErrUnknownUser = errors.New("unknown user")
)

// User is a registered account as stored on disk.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserStore persists accounts in BadgerDB under "user:" keys. It shares the
// database with the message log but the key spaces never overlap.
type UserStore struct {
	db *badger.DB
}

// NewUserStore wraps an open Badger database as an account store.
func NewUserStore(db *badger.DB) *UserStore {
	return &UserStore{db: db}
}

func userKey(id string) []byte {
	return []byte("user:" + id)
}

// Create persists a new account. It fails with ErrUserExists if the id is
// already registered; the check and the write happen in one transaction.
func (s *UserStore) Create(user User) error {
	value, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := userKey(user.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrUserExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, value)
	})
}

// Get returns the account for id, or ErrUnknownUser.
func (s *UserStore) Get(id string) (User, error) {
	var user User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUnknownUser
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &user)
		})
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}
