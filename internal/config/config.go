package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	OTLPEndpoint string

	Lemonsqueezy LemonsqueezyConfig

	RateLimit RateLimitConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// LemonsqueezyConfig carries the provider credentials. WebhookSecret signs
// inbound webhooks, APIKey authenticates outbound calls, StoreID scopes
// checkout creation.
type LemonsqueezyConfig struct {
	APIBaseURL    string
	APIKey        string
	StoreID       string
	WebhookSecret string
}

// RateLimitConfig enables the shared redis token bucket on the gateway
// endpoints. When disabled the server falls back to a per-process
// in-memory limiter, which is enough for a single replica.
type RateLimitConfig struct {
	Enabled                 bool
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	GatewayRate             float64
	GatewayBurst            int
	ReprocessLockTTLSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "lemonsync"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Lemonsqueezy: LemonsqueezyConfig{
			APIBaseURL:    getenv("LEMONSQUEEZY_API_BASE_URL", "https://api.lemonsqueezy.com/v1"),
			APIKey:        strings.TrimSpace(getenv("LEMONSQUEEZY_API_KEY", "")),
			StoreID:       strings.TrimSpace(getenv("LEMONSQUEEZY_STORE_ID", "")),
			WebhookSecret: strings.TrimSpace(getenv("LEMONSQUEEZY_WEBHOOK_SECRET", "")),
		},
		RateLimit: RateLimitConfig{
			Enabled:                 getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:               strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:           strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:                 int(getenvInt64("RATE_LIMIT_REDIS_DB", 0)),
			GatewayRate:             getenvFloat64("RATE_LIMIT_GATEWAY_RATE", 0.5),
			GatewayBurst:            int(getenvInt64("RATE_LIMIT_GATEWAY_BURST", 30)),
			ReprocessLockTTLSeconds: int(getenvInt64("RATE_LIMIT_REPROCESS_LOCK_TTL", 300)),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 3600)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 600)),
	}

	return cfg
}

// Validate checks that provider credentials are present. Credentials are
// required in production; in development a missing webhook secret is
// tolerated so the read-model endpoints still work, and the webhook
// endpoint answers 500 until the secret is set.
func (c Config) Validate() error {
	if c.Environment != "production" {
		return nil
	}

	var missing []string
	if c.Lemonsqueezy.APIKey == "" {
		missing = append(missing, "LEMONSQUEEZY_API_KEY")
	}
	if c.Lemonsqueezy.StoreID == "" {
		missing = append(missing, "LEMONSQUEEZY_STORE_ID")
	}
	if c.Lemonsqueezy.WebhookSecret == "" {
		missing = append(missing, "LEMONSQUEEZY_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

var ErrWebhookSecretMissing = errors.New("webhook_secret_missing")

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPlanCatalogHolder),
	fx.Invoke(func(cfg Config) error {
		return cfg.Validate()
	}),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat64(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
