package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig()

	req.Equal(":8080", cfg.Port)
	req.Positive(cfg.MaxMessageSize)
	req.Positive(cfg.SendBufferSize)
	req.Positive(cfg.RateLimit.Burst)
	req.Positive(cfg.RateLimit.RefillInterval)
}

func TestNewConfigFromEnv(t *testing.T) {
	req := require.New(t)
	t.Setenv("SESSION_SECRET", "env-secret")
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "10")

	cfg, err := NewConfigFromEnv()
	req.NoError(err)
	req.Equal(":9999", cfg.Port)
	req.Equal(int64(1024), cfg.MaxMessageSize)
	req.Equal(10, cfg.RateLimit.Burst)
	req.Equal("env-secret", cfg.SessionSecret)
	req.Equal(168*time.Hour, cfg.SessionTTL)
}

func TestNewConfigFromEnvRequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	_, err := NewConfigFromEnv()
	require.Error(t, err)
}

func TestSanitizeClampsBadValues(t *testing.T) {
	req := require.New(t)
	cfg := &Config{Port: "", MaxMessageSize: -1, SendBufferSize: 0}
	cfg.sanitize()

	req.Equal(":8080", cfg.Port)
	req.Positive(cfg.MaxMessageSize)
	req.Positive(cfg.SendBufferSize)
	req.Positive(cfg.RateLimit.Burst)
}

func TestOriginPolicy(t *testing.T) {
	req := require.New(t)
	p := newOriginPolicy([]string{"http://example.com", " ", "not a url"})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://EXAMPLE.com")
	req.True(p.check(r))

	r.Header.Set("Origin", "http://evil.com")
	req.False(p.check(r))

	// Non-browser clients send no Origin header at all.
	r.Header.Del("Origin")
	req.True(p.check(r))

	wildcard := newOriginPolicy([]string{"*"})
	r.Header.Set("Origin", "http://anywhere.net")
	req.True(wildcard.check(r))
}

func TestRateLimiterRefills(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(2, 20*time.Millisecond)

	req.True(rl.allow())
	req.True(rl.allow())
	req.False(rl.allow())

	time.Sleep(30 * time.Millisecond)
	req.True(rl.allow())
}
