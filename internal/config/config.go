package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port               string
	DatabaseURL        string
	TokenSecret        string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	JanitorInterval    time.Duration
	TokenRetention     time.Duration
}

func Load() Config {
	port := os.Getenv("CRM_PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:               port,
		DatabaseURL:        os.Getenv("DB_DSN"),
		TokenSecret:        os.Getenv("TOKEN_SECRET"),
		AccessTokenTTL:     time.Duration(readInt("ACCESS_TOKEN_TTL_MIN", 24*60)) * time.Minute,
		RefreshTokenTTL:    time.Duration(readInt("REFRESH_TOKEN_TTL_MIN", 7*24*60)) * time.Minute,
		RateLimitPerMinute: readInt("CRM_RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("CRM_RATE_LIMIT_BURST", 30),
		JanitorInterval:    time.Duration(readInt("JANITOR_INTERVAL_MIN", 60)) * time.Minute,
		TokenRetention:     time.Duration(readInt("TOKEN_RETENTION_DAYS", 30)) * 24 * time.Hour,
	}
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
