// Package config loads this aggregator's environment-driven
// configuration: REST/WS server binding, JWT auth, structured logging,
// and streaming behavior (clock-sync cadence, reconnect/backoff).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full process configuration, loaded once at startup.
type Config struct {
	Server   ServerConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Stream   StreamConfig
}

// ServerConfig controls the REST + WebSocket listener.
type ServerConfig struct {
	Host     string
	Port     int
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// SecurityConfig controls JWT issuance/validation for mutating REST
// endpoints (e.g. POST /control/stop).
type SecurityConfig struct {
	JWTSecret      string
	SessionTimeout int // seconds

	// AdminUsername/AdminPasswordHash gate POST /api/v1/auth/token, the
	// only JWT issuance path this service exposes. AdminPasswordHash is
	// a bcrypt hash (pkg/crypto.HashPassword output), never a plaintext
	// password.
	AdminUsername     string
	AdminPasswordHash string
}

// LoggingConfig controls the zap logger built at startup.
type LoggingConfig struct {
	Level  string
	Format string
}

// StreamConfig holds the clock-sync cadence and the reconnect/backoff
// settings for venue streaming. cmd/monitor passes only
// ClockSyncInterval on to the aggregator; the WS*, MaxRetries and
// RetryBackoff fields are loaded but not used by the venue clients.
type StreamConfig struct {
	ClockSyncInterval time.Duration // cadence of ClockSync.fetch_time (default: 10s)
	WSReconnectDelay  time.Duration
	WSPingInterval    time.Duration
	WSReadTimeout     time.Duration

	MaxRetries   int
	RetryBackoff time.Duration

	// TopN is a ranking depth loaded from the environment. cmd/monitor
	// does not read it: the /pairs/top default and the broadcast depth
	// come from the CLI's --topn flag (default 20).
	TopN int
}

// Load reads configuration from the environment, applying the defaults
// below for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Security: SecurityConfig{
			JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
			SessionTimeout:    getEnvAsInt("SESSION_TIMEOUT", 3600),
			AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Stream: StreamConfig{
			ClockSyncInterval: getEnvAsDuration("CLOCK_SYNC_INTERVAL", 10*time.Second),
			WSReconnectDelay:  getEnvAsDuration("WS_RECONNECT_DELAY", 2*time.Second),
			WSPingInterval:    getEnvAsDuration("WS_PING_INTERVAL", 15*time.Second),
			WSReadTimeout:     getEnvAsDuration("WS_READ_TIMEOUT", 30*time.Second),
			MaxRetries:        getEnvAsInt("MAX_RETRIES", 4),
			RetryBackoff:      getEnvAsDuration("RETRY_BACKOFF", 500*time.Millisecond),
			TopN:              getEnvAsInt("TOPN", 20),
		},
	}

	if cfg.Security.JWTSecret == "change-me-in-production" && getEnv("APP_ENV", "development") == "production" {
		return nil, fmt.Errorf("JWT_SECRET must be set explicitly in production")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
