package config

import (
	"os"
	"strings"
)

const (
	EnvDataDir     = "REFERRAL_DATA_DIR"
	EnvDatabaseURL = "DATABASE_URL"
	EnvRedisURL    = "REDIS_URL"
)

// OverlayEnv lets deploys override the file without editing it.
// DATABASE_URL also switches the driver to postgres.
func OverlayEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.App.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisURL)); v != "" && cfg.Lock.Backend == "redis" {
		cfg.Lock.RedisURL = v
	}
}
