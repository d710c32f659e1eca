package auth

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T, ttl time.Duration) *Authenticator {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAuthenticator(NewUserStore(db), []byte("test-secret"), ttl, slog.Default())
}

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "correct horse battery staple"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong password", hash)
	req.NoError(err)
	req.False(match)
}

func TestValidateRegister(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		request RegisterRequest
		wantErr bool
	}{
		{"valid", RegisterRequest{"42", "Alice", "supersecret1"}, false},
		{"missing name", RegisterRequest{"42", "", "supersecret1"}, true},
		{"short password", RegisterRequest{"42", "Alice", "short"}, true},
		{"non numeric id", RegisterRequest{"alice", "Alice", "supersecret1"}, true},
		{"id out of range", RegisterRequest{"301", "Alice", "supersecret1"}, true},
		{"id zero", RegisterRequest{"0", "Alice", "supersecret1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.request)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestRegisterLoginVerifyRoundTrip(t *testing.T) {
	req := require.New(t)
	a := newTestAuthenticator(t, time.Hour)

	req.NoError(a.Register(RegisterRequest{ID: "7", Name: "Grace", Password: "supersecret1"}))

	token, err := a.Login("7", "supersecret1")
	req.NoError(err)
	req.NotEmpty(token)

	userID, err := a.VerifyIdentity(token)
	req.NoError(err)
	req.Equal("7", userID)
}

func TestRegisterDuplicateID(t *testing.T) {
	req := require.New(t)
	a := newTestAuthenticator(t, time.Hour)

	req.NoError(a.Register(RegisterRequest{ID: "7", Name: "Grace", Password: "supersecret1"}))
	err := a.Register(RegisterRequest{ID: "7", Name: "Mallory", Password: "supersecret2"})
	req.ErrorIs(err, ErrUserExists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	req := require.New(t)
	a := newTestAuthenticator(t, time.Hour)
	req.NoError(a.Register(RegisterRequest{ID: "7", Name: "Grace", Password: "supersecret1"}))

	_, err := a.Login("7", "wrong password")
	req.ErrorIs(err, ErrInvalidCredentials)

	_, err = a.Login("8", "supersecret1")
	req.ErrorIs(err, ErrInvalidCredentials)
}

func TestVerifyIdentityRejectsGarbageAndExpired(t *testing.T) {
	req := require.New(t)

	a := newTestAuthenticator(t, -time.Minute)
	req.NoError(a.Register(RegisterRequest{ID: "7", Name: "Grace", Password: "supersecret1"}))
	expired, err := a.Login("7", "supersecret1")
	req.NoError(err)

	_, err = a.VerifyIdentity(expired)
	req.ErrorIs(err, ErrInvalidCredentials)

	_, err = a.VerifyIdentity("not-a-token")
	req.ErrorIs(err, ErrInvalidCredentials)
}
