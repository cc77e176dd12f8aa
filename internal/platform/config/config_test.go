package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SESSION_SECRET", "test-session-secret")
}

func TestLoad_AllRequiredVarsSet(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "test-session-secret", cfg.SessionSecret)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		skipEnv string
		wantErr string
	}{
		{"missing DATABASE_URL", "DATABASE_URL", "DATABASE_URL is required"},
		{"missing JWT_SECRET", "JWT_SECRET", "JWT_SECRET is required"},
		{"missing SESSION_SECRET", "SESSION_SECRET", "SESSION_SECRET is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skipEnv, "")

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Cooldown)
	assert.Equal(t, 200, cfg.BoardWidth)
	assert.Equal(t, 200, cfg.BoardHeight)
	assert.Equal(t, 10000, cfg.MaxWebSocketConnections)
	assert.Equal(t, 16, cfg.MaxConnectionsPerActor)
	assert.Equal(t, 720*time.Hour, cfg.SessionMaxAge)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("COOLDOWN", "1m")
	t.Setenv("BOARD_WIDTH", "64")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, time.Minute, cfg.Cooldown)
	assert.Equal(t, 64, cfg.BoardWidth)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"short jwt secret", "JWT_SECRET", "too-short", "JWT_SECRET must be at least 32 characters"},
		{"zero cooldown", "COOLDOWN", "0s", "COOLDOWN must be positive"},
		{"negative width", "BOARD_WIDTH", "-1", "BOARD_WIDTH and BOARD_HEIGHT must be positive"},
		{"zero per-ip limit", "MAX_CONNECTIONS_PER_IP", "0", "connection limits must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestConfig_Origins(t *testing.T) {
	cfg := &Config{AllowedOrigins: " https://a.example , ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())

	assert.Nil(t, (&Config{}).Origins())
}
