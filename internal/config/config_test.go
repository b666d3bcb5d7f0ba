package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "secret")
	t.Setenv("STORE_DRIVER", StoreMemory)

	cfg, err := Load()

	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, ":8080", cfg.Addr())
	require.Equal(t, 256, cfg.SendBuffer)
	require.Equal(t, 30*time.Second, cfg.PingInterval)
	require.Equal(t, 50, cfg.HistoryLimit)
	require.False(t, cfg.DebugRoutes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "secret")
	t.Setenv("STORE_DRIVER", StorePostgres)
	t.Setenv("DB_DSN", "postgres://localhost/teamchat")
	t.Setenv("PORT", "9000")
	t.Setenv("WS_PING_INTERVAL", "5s")
	t.Setenv("DEBUG_ROUTES", "true")

	cfg, err := Load()

	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, 5*time.Second, cfg.PingInterval)
	require.True(t, cfg.DebugRoutes)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	t.Run("missing signing key", func(t *testing.T) {
		t.Setenv("JWT_SIGNING_KEY", "")
		t.Setenv("STORE_DRIVER", StoreMemory)
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("JWT_SIGNING_KEY", "secret")
		t.Setenv("STORE_DRIVER", StorePostgres)
		t.Setenv("DB_DSN", "")
		_, err := Load()
		require.ErrorContains(t, err, "DB_DSN")
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("JWT_SIGNING_KEY", "secret")
		t.Setenv("STORE_DRIVER", "redis")
		_, err := Load()
		require.ErrorContains(t, err, "redis")
	})
}
