package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

func clearSessionEnv(t *testing.T) {
	for _, key := range []string{"SESSION_TTL", "JWT_EXPIRATION_HOURS", "SESSION_COOKIE_NAME", "SESSION_COOKIE_SECURE"} {
		t.Setenv(key, "")
	}
}

func TestNewJWTConfig_Defaults(t *testing.T) {
	clearSessionEnv(t)
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.Secret)
	assert.Equal(t, 24*time.Hour, cfg.TTL)
	assert.Equal(t, DefaultSessionCookie, cfg.CookieName)
	assert.True(t, cfg.SecureCookie)
}

func TestNewJWTConfig_Overrides(t *testing.T) {
	clearSessionEnv(t)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("SESSION_COOKIE_NAME", "sid")
	t.Setenv("SESSION_COOKIE_SECURE", "false")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.TTL)
	assert.Equal(t, "sid", cfg.CookieName)
	assert.False(t, cfg.SecureCookie)
}

func TestNewJWTConfig_LegacyHours(t *testing.T) {
	clearSessionEnv(t)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_EXPIRATION_HOURS", "12")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, cfg.TTL)

	t.Setenv("SESSION_TTL", "2h")
	cfg, err = NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.TTL, "SESSION_TTL wins")
}

func TestNewJWTConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		ttl     string
		hours   string
		wantErr string
	}{
		{name: "missing secret", wantErr: "JWT_SECRET is required"},
		{name: "short secret", secret: "short", wantErr: "at least 32 bytes"},
		{name: "bad duration", secret: testSecret, ttl: "soon", wantErr: "invalid SESSION_TTL"},
		{name: "non numeric hours", secret: testSecret, hours: "abc", wantErr: "invalid JWT_EXPIRATION_HOURS"},
		{name: "zero hours", secret: testSecret, hours: "0", wantErr: "at least one minute"},
		{name: "tiny ttl", secret: testSecret, ttl: "5s", wantErr: "at least one minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearSessionEnv(t)
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("SESSION_TTL", tt.ttl)
			t.Setenv("JWT_EXPIRATION_HOURS", tt.hours)
			if tt.secret == "" {
				os.Unsetenv("JWT_SECRET")
			}

			cfg, err := NewJWTConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
