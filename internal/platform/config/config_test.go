package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("FITGATE_ADDR", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("JWT_SIGNING_KEY", "")
	t.Setenv("TASK_PICKUP_DELAY", "")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.AuthRequestTTL)
	assert.True(t, cfg.IsDevSigningKey())
	assert.Empty(t, cfg.AdminToken, "operator API is off unless configured")
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Tasks.PickupDelay)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FITGATE_ADDR", ":9090")
	t.Setenv("FITGATE_BASE_URL", "https://gw.example.com/")
	t.Setenv("TOKEN_TTL", "15m")
	t.Setenv("TASK_WORKERS", "8")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SIGNING_KEY", "prod-key")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "https://gw.example.com", cfg.BaseURL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 8, cfg.Tasks.Workers)
	assert.True(t, cfg.Auth.SecureCookies)
	assert.False(t, cfg.IsDevSigningKey())
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TOKEN_TTL", "forever")
	t.Setenv("TASK_WORKERS", "many")

	cfg := FromEnv()

	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 4, cfg.Tasks.Workers)
}
