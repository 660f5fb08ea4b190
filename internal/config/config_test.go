package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"otr_messaging/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.Default()

	require.Equal(t, "localhost:9090", cfg.BackendHost)
	require.Equal(t, 5*time.Second, cfg.SyncInterval())
	require.Equal(t, 2*time.Hour, cfg.SessionTTL())
	require.Equal(t, 24*time.Hour, cfg.AssetCacheTTL())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend_host = "chat.example.com:443"
redis_addr = "redis.internal:6379"
sync_interval_seconds = 30
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "chat.example.com:443", cfg.BackendHost)
	require.Equal(t, "redis.internal:6379", cfg.RedisAddr)
	require.Equal(t, 30*time.Second, cfg.SyncInterval())
	// untouched keys keep their defaults
	require.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
