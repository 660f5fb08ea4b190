package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the runtime configuration shared by the client and the relay.
type Config struct {
	// BackendHost is the relay's host:port as seen from the client.
	BackendHost string `toml:"backend_host"`
	// RelayListen is the address the relay binds to.
	RelayListen string `toml:"relay_listen"`

	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
	RedisAddr     string `toml:"redis_addr"`

	// StorePath is the bbolt file holding the client's durable state.
	StorePath string `toml:"store_path"`

	SyncIntervalSeconds  int `toml:"sync_interval_seconds"`
	SessionTTLHours      int `toml:"session_ttl_hours"`
	AssetCacheTTLMinutes int `toml:"asset_cache_ttl_minutes"`
}

func Default() Config {
	return Config{
		BackendHost:          "localhost:9090",
		RelayListen:          "localhost:9090",
		MongoURI:             "mongodb://localhost:27017",
		MongoDatabase:        "otrdb",
		RedisAddr:            "localhost:6379",
		StorePath:            "otr-client.db",
		SyncIntervalSeconds:  5,
		SessionTTLHours:      2,
		AssetCacheTTLMinutes: 24 * 60,
	}
}

// Load reads a TOML file over the defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c Config) AssetCacheTTL() time.Duration {
	return time.Duration(c.AssetCacheTTLMinutes) * time.Minute
}
