package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 50, cfg.HistoryLimit)
	require.Equal(t, 30*time.Second, cfg.PingInterval)
	require.Equal(t, 8*time.Second, cfg.TypingTTL)
	require.Equal(t, 24*time.Hour, cfg.TokenTTL)
	require.True(t, cfg.AllowGuests)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("HISTORY_LIMIT", "10")
	t.Setenv("ALLOW_GUESTS", "false")
	t.Setenv("PING_INTERVAL_SECONDS", "5")

	cfg := Load()

	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, 10, cfg.HistoryLimit)
	require.Equal(t, 5*time.Second, cfg.PingInterval)
	require.False(t, cfg.AllowGuests)
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("HISTORY_LIMIT", "lots")
	t.Setenv("ALLOW_GUESTS", "maybe")

	cfg := Load()

	require.Equal(t, 50, cfg.HistoryLimit)
	require.True(t, cfg.AllowGuests)
}
