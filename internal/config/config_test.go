package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_DRIVER", "TICK_RATE", "READY_TIMEOUT", "LOG_LEVEL", "DATABASE_URL", "TOKEN_EXPIRE_TIME", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 60, cfg.TickRate)
	assert.Equal(t, 5, cfg.ScoreLimit)
	assert.Equal(t, 10*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, 30*time.Second, cfg.SelectionTimeout)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, DefaultQueueName, cfg.QueueName)
	assert.Zero(t, cfg.TokenTTL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Contains(t, cfg.DatabaseURL, "postgres://")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", StoreSQLite)
	t.Setenv("TICK_RATE", "30")
	t.Setenv("SELECTION_TIMEOUT", "5s")
	t.Setenv("TOKEN_EXPIRE_TIME", "72h")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/arena")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, 5*time.Second, cfg.SelectionTimeout)
	assert.Equal(t, 72*time.Hour, cfg.TokenTTL)
	assert.Equal(t, logrus.WarnLevel, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "postgres://u:p@db:5432/arena", cfg.DatabaseURL)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("TICK_RATE", "fast")
	t.Setenv("READY_TIMEOUT", "10")
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TICK_RATE")
	assert.Contains(t, err.Error(), "READY_TIMEOUT")
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}
