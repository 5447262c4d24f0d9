package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("CSRF_SECRET", "csrf")
	t.Setenv("INVENTORY_POLL_INTERVAL", "2s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, int64(10), cfg.LowStockThreshold)
	require.Equal(t, 7*24*time.Hour, cfg.ExpiryWindow)
	require.Equal(t, MinPollInterval, cfg.InventoryPollInterval)
	require.False(t, cfg.IsProduction())
}

func TestClampPollInterval(t *testing.T) {
	require.Equal(t, MinPollInterval, ClampPollInterval(time.Second))
	require.Equal(t, 30*time.Second, ClampPollInterval(30*time.Second))
	require.Equal(t, MaxPollInterval, ClampPollInterval(5*time.Minute))
}
