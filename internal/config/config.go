package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	JWTSecret   string
	TokenMaxAge time.Duration
	BcryptCost  int

	// Catalog
	CatalogClientID     string
	CatalogClientSecret string
	CatalogAccountsURL  string
	CatalogAPIURL       string
	CatalogTimeout      time.Duration
	CatalogSearchLimit  int
	CatalogRateLimit    int
	CatalogItemCacheTTL time.Duration

	// Cache
	RedisAddr string

	// Events
	KafkaBrokers        []string
	KafkaTopic          string
	OutboxRelaySchedule string
	OutboxBatchSize     int
	OutboxRetentionDays int

	// Telemetry
	OTELEndpoint    string
	OTELServiceName string

	// Feed
	FeedDefaultLimit int
	FeedMaxLimit     int

	// Rate Limit
	RateLimitGeneral     int
	RateLimitInteraction int

	// Logging
	LogLevel string

	// Server
	ServerPort        string
	WorkerMetricsPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.CatalogClientID = os.Getenv("CATALOG_CLIENT_ID")
	if cfg.CatalogClientID == "" {
		missing = append(missing, "CATALOG_CLIENT_ID")
	}

	cfg.CatalogClientSecret = os.Getenv("CATALOG_CLIENT_SECRET")
	if cfg.CatalogClientSecret == "" {
		missing = append(missing, "CATALOG_CLIENT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenMaxAge = getEnvDuration("TOKEN_MAX_AGE", 24*time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.CatalogAccountsURL = strings.TrimRight(getEnvString("CATALOG_ACCOUNTS_URL", "https://accounts.spotify.com"), "/")
	cfg.CatalogAPIURL = strings.TrimRight(getEnvString("CATALOG_API_URL", "https://api.spotify.com"), "/")
	cfg.CatalogTimeout = getEnvDuration("CATALOG_TIMEOUT", 10*time.Second)
	cfg.CatalogSearchLimit = getEnvInt("CATALOG_SEARCH_LIMIT", 10)
	cfg.CatalogRateLimit = getEnvInt("CATALOG_RATE_LIMIT", 10)
	cfg.CatalogItemCacheTTL = getEnvDuration("CATALOG_ITEM_CACHE_TTL", time.Hour)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.KafkaBrokers = getEnvList("KAFKA_BROKERS")
	cfg.KafkaTopic = getEnvString("KAFKA_TOPIC", "muse.events")
	cfg.OutboxRelaySchedule = getEnvString("OUTBOX_RELAY_SCHEDULE", "@every 10s")
	cfg.OutboxBatchSize = getEnvInt("OUTBOX_BATCH_SIZE", 100)
	cfg.OutboxRetentionDays = getEnvInt("OUTBOX_RETENTION_DAYS", 7)
	cfg.OTELEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.OTELServiceName = getEnvString("OTEL_SERVICE_NAME", "muse")
	cfg.FeedDefaultLimit = getEnvInt("FEED_DEFAULT_LIMIT", 20)
	cfg.FeedMaxLimit = getEnvInt("FEED_MAX_LIMIT", 100)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitInteraction = getEnvInt("RATE_LIMIT_INTERACTION", 60)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", "9091")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.FeedDefaultLimit > cfg.FeedMaxLimit {
		cfg.FeedDefaultLimit = cfg.FeedMaxLimit
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
