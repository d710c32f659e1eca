// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay service.
package server

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST,default=5"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
}

// Config holds the server configuration settings including security controls
// and storage locations.
type Config struct {
	Port           string   `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`
	MaxMessageSize int64    `env:"MAX_MESSAGE_SIZE,default=4096"`
	SendBufferSize int      `env:"SEND_BUFFER_SIZE,default=256"`
	RateLimit      RateLimitConfig

	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data"`
	UploadDir      string `env:"UPLOAD_DIR,default=./uploads"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL,default=168h"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// NewConfig creates a Config instance populated with default values for all
// settings.
func NewConfig() *Config {
	return &Config{
		Port:           ":8080",
		AllowedOrigins: []string{"http://localhost:8080"},
		MaxMessageSize: 4096,
		SendBufferSize: 256,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		BadgerFilepath: "./data",
		UploadDir:      "./uploads",
		SessionTTL:     168 * time.Hour,
		LogLevel:       "info",
	}
}

// NewConfigFromEnv creates a Config instance from environment variables,
// falling back to defaults for anything unset. SESSION_SECRET is the one
// value with no usable default.
func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET must be set")
	}
	cfg.sanitize()
	return &cfg, nil
}

// sanitize clamps nonsensical values back to defaults.
func (c *Config) sanitize() {
	if c.Port == "" {
		c.Port = ":8080"
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 256
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 168 * time.Hour
	}
}
