package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORAGE", "DATABASE_URL", "SEED", "SESSION_TTL", "CACHE_TTL", "REDIS_URL", "NATS_URL", "JWT_SECRET"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.False(t, cfg.Seed)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE", "SQLite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SEED", "true")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, "./data/quill.db", cfg.DatabaseURL)
	assert.True(t, cfg.Seed)
	assert.Equal(t, 90*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 0, cfg.RedisDB, "unparsable values fall back to the default")
}

func TestValidate(t *testing.T) {
	cfg := &Config{Port: "8080", Storage: StoragePostgres}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Port: "8080", Storage: "mongo"}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Port: "http", Storage: StorageMemory}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Port: "8080", Storage: StoragePostgres, DatabaseURL: "postgres://localhost/quill"}
	assert.NoError(t, cfg.Validate())
}

func TestJWTSecret(t *testing.T) {
	t.Setenv("STORAGE", "")
	t.Setenv("PORT", "")
	t.Setenv("JWT_SECRET", "")

	first, err := FromEnv()
	require.NoError(t, err)
	second, err := FromEnv()
	require.NoError(t, err)
	assert.Len(t, first.JWTSecret, 64)
	assert.NotEqual(t, first.JWTSecret, second.JWTSecret, "each process gets its own secret")

	secret := first.JWTSecret
	require.NoError(t, first.Validate())
	assert.Equal(t, secret, first.JWTSecret, "revalidating keeps the secret")

	t.Setenv("JWT_SECRET", "from-env")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTSecret)
}
