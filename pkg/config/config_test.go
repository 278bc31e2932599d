package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SEARCH_MAX_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, 3*time.Second, cfg.Search.QueryTimeout)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SEARCH_MAX_LIMIT", "50")
	t.Setenv("SEARCH_QUERY_TIMEOUT", "750ms")
	t.Setenv("ALLOWED_ORIGINS", "https://jewgo.app, https://admin.jewgo.app")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Search.MaxLimit)
	assert.Equal(t, 750*time.Millisecond, cfg.Search.QueryTimeout)
	assert.Equal(t, []string{"https://jewgo.app", "https://admin.jewgo.app"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "localhost:6380", cfg.Redis.RedisAddr())
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SEARCH_DEFAULT_LIMIT", "abc")
	t.Setenv("SEARCH_FACET_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 2*time.Second, cfg.Search.FacetTimeout)
}

func TestValidate(t *testing.T) {
	t.Run("max limit below default", func(t *testing.T) {
		t.Setenv("SEARCH_MAX_LIMIT", "5")
		_, err := Load()
		assert.ErrorContains(t, err, "SEARCH_MAX_LIMIT")
	})

	t.Run("memory store needs seed file", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", StoreDriverMemory)
		t.Setenv("STORE_SEED_FILE", "")
		_, err := Load()
		assert.ErrorContains(t, err, "STORE_SEED_FILE")
	})

	t.Run("unknown store driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown STORE_DRIVER")
	})
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "jewgo", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=jewgo sslmode=require", c.DatabaseDSN())
}
