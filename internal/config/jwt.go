package config

import (
	"fmt"
	"os"
	"time"
)

const (
	// DefaultSessionCookie is the cookie holding the signed session token.
	DefaultSessionCookie = "ro_session"
	DefaultSessionTTL    = 24 * time.Hour
	// MinJWTSecretBytes is the shortest accepted HMAC secret.
	MinJWTSecretBytes = 32
)

// JWTConfig holds the signing secret and cookie settings of web sessions.
type JWTConfig struct {
	Secret       string
	TTL          time.Duration
	CookieName   string
	SecureCookie bool
}

// NewJWTConfig reads JWT_SECRET (required), SESSION_TTL (a duration such as
// "12h", default 24h), SESSION_COOKIE_NAME and SESSION_COOKIE_SECURE
// (default true). JWT_EXPIRATION_HOURS is still honored when SESSION_TTL is unset.
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	ttl, err := sessionTTL()
	if err != nil {
		return nil, err
	}

	cfg := &JWTConfig{
		Secret:       secret,
		TTL:          ttl,
		CookieName:   getEnv("SESSION_COOKIE_NAME", DefaultSessionCookie),
		SecureCookie: getEnvBool("SESSION_COOKIE_SECURE", true),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sessionTTL() (time.Duration, error) {
	if os.Getenv("SESSION_TTL") != "" {
		ttl, err := getEnvDuration("SESSION_TTL", DefaultSessionTTL)
		if err != nil {
			return 0, fmt.Errorf("invalid SESSION_TTL: %w", err)
		}
		return ttl, nil
	}
	hours, err := getEnvInt("JWT_EXPIRATION_HOURS", int(DefaultSessionTTL/time.Hour))
	if err != nil {
		return 0, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %w", err)
	}
	return time.Duration(hours) * time.Hour, nil
}

// Validate checks the secret length and TTL and fills in the cookie name.
func (c *JWTConfig) Validate() error {
	if len(c.Secret) < MinJWTSecretBytes {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes, got: %d", MinJWTSecretBytes, len(c.Secret))
	}
	if c.TTL < time.Minute {
		return fmt.Errorf("session TTL must be at least one minute, got: %s", c.TTL)
	}
	if c.CookieName == "" {
		c.CookieName = DefaultSessionCookie
	}
	return nil
}
