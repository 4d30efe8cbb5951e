package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := GetConfig()
	require.NoError(t, err)
	require.Equal(t, "localhost:8080", cfg.Handler.ServerAddr)
	require.Equal(t, "info", cfg.Logger.LogLevel)
	require.Equal(t, "sqlite", cfg.Store.Driver)
	require.Equal(t, "giftcards.db", filepath.Base(cfg.Store.DBDsn))
	require.Equal(t, 2*time.Second, cfg.Service.AutosaveDelay)
	require.True(t, cfg.Service.WatchBackup)
	require.Equal(t, "0 9 * * *", cfg.Reminder.Schedule)
	require.Equal(t, 7*24*time.Hour, cfg.Reminder.Window)
	require.Empty(t, cfg.Extract.Provider)
	require.Empty(t, cfg.Auth.UnlockPIN)
}

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("GIFTCARDS_SERVER_ADDR", ":9090")
	t.Setenv("GIFTCARDS_DB_DRIVER", "pgx")
	t.Setenv("GIFTCARDS_DB_DSN", "postgres://localhost/giftcards")
	t.Setenv("GIFTCARDS_AUTOSAVE_DELAY", "500ms")
	t.Setenv("GIFTCARDS_WATCH_BACKUP", "false")
	t.Setenv("GIFTCARDS_UNLOCK_PIN", "2468")
	t.Setenv("GIFTCARDS_EXTRACT_PROVIDER", "http")
	t.Setenv("GIFTCARDS_EXTRACT_ADDR", "http://localhost:8081")
	t.Setenv("GIFTCARDS_REMINDER_WINDOW", "72h")

	cfg, err := GetConfig()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Handler.ServerAddr)
	require.Equal(t, "pgx", cfg.Store.Driver)
	require.Equal(t, "postgres://localhost/giftcards", cfg.Store.DBDsn)
	require.Equal(t, 500*time.Millisecond, cfg.Service.AutosaveDelay)
	require.False(t, cfg.Service.WatchBackup)
	require.Equal(t, "2468", cfg.Auth.UnlockPIN)
	require.Equal(t, "http", cfg.Extract.Provider)
	require.Equal(t, "http://localhost:8081", cfg.Extract.ExtractAddr)
	require.Equal(t, 72*time.Hour, cfg.Reminder.Window)
}
