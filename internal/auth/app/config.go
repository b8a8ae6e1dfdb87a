package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

type Config struct {
	Issuer   string // Issuer claim for tokens (default: gatekeeper)
	Audience string // Audience claim for tokens (default: gatekeeper-api)

	Algorithm      string        // JWT signing algorithm (HS256, EdDSA) (default: EdDSA)
	SigningKey     string        // HS256 shared secret, at least 32 bytes
	SigningKeyFile string        // Path to a file holding the HS256 secret, used when SigningKey is empty
	NumKeys        int           // Number of EdDSA signing keys to generate (default: 3, min: 1, max: 10)
	TokenTTL       time.Duration // Default access token lifetime (default: 15m)
	RefreshTTL     time.Duration // Refresh token lifetime (default: 7 days)
	ClockSkew      time.Duration // Tolerance applied to exp, at most 5m (default: 0)

	PolicyFile string // YAML policy table; built in policies when empty
	SeedFile   string // YAML user seed; demo users when empty

	DatabaseFile string // Path to SQLite database file (default: ./auth.db)
	PepperFile   string // Path to file containing pepper for password hashing (default: ./pepper)

	RefreshStore string // Where refresh tokens live (sqlite, redis) (default: sqlite)
	RedisAddr    string // Redis address when RefreshStore is redis (default: localhost:6379)

	MetricsExporter string // Metrics exporter (prometheus, stdout, none) (default: prometheus)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:               getEnvOrDefault("AUTH_ISSUER", "gatekeeper"),
		Audience:             getEnvOrDefault("AUTH_AUDIENCE", "gatekeeper-api"),
		Algorithm:            getEnvOrDefault("AUTH_ALGORITHM", jwtx.AlgorithmEdDSA),
		SigningKey:           os.Getenv("AUTH_SIGNING_KEY"),
		SigningKeyFile:       os.Getenv("AUTH_SIGNING_KEY_FILE"),
		NumKeys:              getEnvIntOrDefault("AUTH_NUM_KEYS", 0), // 0 lets the KeyManager pick
		TokenTTL:             getEnvDurationOrDefault("AUTH_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:           getEnvDurationOrDefault("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		ClockSkew:            getEnvDurationOrDefault("AUTH_CLOCK_SKEW", 0),
		PolicyFile:           os.Getenv("AUTH_POLICY_FILE"),
		SeedFile:             os.Getenv("AUTH_SEED_FILE"),
		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:           getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		RefreshStore:         strings.ToLower(getEnvOrDefault("AUTH_REFRESH_STORE", "sqlite")),
		RedisAddr:            getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		MetricsExporter:      strings.ToLower(getEnvOrDefault("METRICS_EXPORTER", MetricsPrometheus)),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
