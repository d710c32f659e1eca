// Package auth implements the session authenticator: account registration,
// password verification, and the signed session tokens that identify a user
// before a connection is admitted to the relay.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrInvalidCredentials is returned for a wrong password, an unknown user,
// or an unverifiable session token. Callers surface all three identically so
// login responses do not leak which ids exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator verifies identities for the relay. It owns the account store
// and the token secret; nothing else in the system touches passwords.
type Authenticator struct {
	users  *UserStore
	secret []byte
	ttl    time.Duration
	log    *slog.Logger
}

// NewAuthenticator builds an authenticator issuing tokens valid for ttl.
func NewAuthenticator(users *UserStore, secret []byte, ttl time.Duration, log *slog.Logger) *Authenticator {
	return &Authenticator{users: users, secret: secret, ttl: ttl, log: log}
}

// Register validates and creates a new account.
func (a *Authenticator) Register(req RegisterRequest) error {
	if err := ValidateRegister(req); err != nil {
		return err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = a.users.Create(User{
		ID:           req.ID,
		Name:         req.Name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	a.log.Info("user registered", "user", req.ID)
	return nil
}

// Login verifies the password for id and returns a fresh session token.
func (a *Authenticator) Login(id, password string) (string, error) {
	user, err := a.users.Get(id)
	if errors.Is(err, ErrUnknownUser) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	match, err := ComparePassword(password, user.PasswordHash)
	if err != nil {
		return "", err
	}
	if !match {
		return "", ErrInvalidCredentials
	}
	return signToken(a.secret, user.ID, a.ttl)
}

// VerifyIdentity resolves a session token to the user id it was issued for.
// Any parse or signature failure maps to ErrInvalidCredentials.
func (a *Authenticator) VerifyIdentity(credential string) (string, error) {
	userID, err := parseToken(a.secret, credential)
	if err != nil {
		a.log.Debug("session token rejected", "error", err)
		return "", ErrInvalidCredentials
	}
	return userID, nil
}
