package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Cart.StorageBackend)
	assert.Equal(t, "cart", cfg.Cart.KeyPrefix)
	assert.Equal(t, 500*time.Millisecond, cfg.Cart.DebounceWindow)
	assert.Equal(t, 3*time.Second, cfg.Cart.NotificationTTL)
	assert.False(t, cfg.Cart.RejectUnpriced)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CART_STORAGE_BACKEND", "Redis")
	t.Setenv("CART_DEBOUNCE_WINDOW", "2s")
	t.Setenv("CART_REJECT_UNPRICED", "true")
	t.Setenv("REDIS_DB", "4")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageRedis, cfg.Cart.StorageBackend)
	assert.Equal(t, 2*time.Second, cfg.Cart.DebounceWindow)
	assert.True(t, cfg.Cart.RejectUnpriced)
	assert.Equal(t, 4, cfg.Redis.DB)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("CART_DEBOUNCE_WINDOW", "soon")
	t.Setenv("REDIS_DB", "x")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Cart.DebounceWindow)
	assert.Equal(t, 0, cfg.Redis.DB)

	t.Setenv("CART_STORAGE_BACKEND", "floppy")
	_, err = Load()
	assert.ErrorContains(t, err, "floppy")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "carts", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=carts sslmode=disable", c.DSN())
}
